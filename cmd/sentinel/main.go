// Command sentinel runs the incident response core: the orchestrator pool
// that drives admitted incidents through their phase machine, plus a
// minimal operational CLI (run/verify/replay/escalate/migrate).
package main

func main() {
	Execute()
}
