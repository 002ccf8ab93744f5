// Package classify grades vital readings as normal, warning, or
// critical. The classifier is a replaceable collaborator: the routing
// core carries its output through session records without consulting it,
// so the grading algorithm can change without touching routing.
package classify
