// Package process holds the process-scoped library state: the named
// registry of cores, brokers and federates created by the process, the
// reference-counted handles on them, the protect registry and the optional
// signal handler.
//
// A Context is created explicitly with New, or lazily with Default. Every
// object created through a Context is torn down when its last reference is
// released or when the Context is shut down:
//
//	pc := process.New(process.DefaultConfig())
//	defer pc.Shutdown()
//
//	cr, err := pc.CreateCore(ctx, core.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	fr, err := pc.CreateFederate(ctx, cr.Get(), "gen", federate.DefaultInfo())
//
// A protected federate survives the release of all its references and can
// be retrieved again with FederateByName until it is unprotected.
package process
