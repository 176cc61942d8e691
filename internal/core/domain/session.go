package domain

// Session threads the state of one attempt through the planner, executor and recovery coordinator.
// There is no package-level engine state; everything an operation needs travels here.
type Session struct {
	Layout   *Layout
	Config   Config
	Lockfile *Lockfile
}
