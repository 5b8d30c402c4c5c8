// Package integration contains the ports to systems outside the sync engine.
//
// Key concepts:
//   - Connector / Session: the destination commerce system
//   - Dispatcher: invocation of the next bounded run (self or forward target)
//   - Notifier: escalation of fatal run errors to an operator topic
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
