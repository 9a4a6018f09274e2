// Package mcpserver exposes the executor through the Model Context Protocol
// using mark3labs/mcp-go.
//
// Two tools are registered: submit_execution queues a submission exactly as
// POST /execute does, and executor_status returns the same document as
// GET /status. The server runs over stdio or streamable HTTP, or not at all,
// according to mcp.transport.
//
// Usage:
//
//	srv := mcpserver.New(logger, manager, mcpserver.TransportHTTP, ":8081")
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Stop(ctx)
package mcpserver
