// Package sandbox provides isolated environments for running untrusted code.
//
// A Sandbox is provisioned for exactly one submission. Files are unpacked into
// it, commands are executed inside its boundary with a timeout, and Close
// destroys it together with everything created inside it. Three backends are
// available: LXC containers, OCI containers driven through the docker or
// podman CLI, and a local backend that runs commands directly on the host
// (for development only).
//
// Usage:
//
//	factory, err := sandbox.NewFactory(logger, sandbox.Config{Backend: "lxc"})
//	sb, err := factory.New(ctx)
//	defer sb.Close()
//	dir, err := sb.Unpack(files)
//	res, err := sb.Execute(ctx, []string{"ls", dir}, nil, 5*time.Second)
package sandbox
