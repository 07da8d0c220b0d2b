// Package query implements introspection queries against federates, cores
// and brokers.
//
// A Query pairs a target name with a query string and a sequencing mode.
// FAST queries travel on the priority channel and may overtake ordinary
// traffic; ORDERED queries stay in order with it; DEFAULT lets the target
// choose. Results are JSON documents. Failures are reported as
//
//	{"error":{"code":404,"message":"target not found"}}
//
// Any node type implements Executor.
package query
