// Package httpclient builds pooled, asynchronous HTTP clients.
//
// A Factory turns an immutable ClientConfig into a started Client. The
// Client owns the connection pool, the dispatcher goroutines, the
// credentials provider and the cookie jar, and must be closed when no longer
// needed:
//
//	client, err := httpclient.Create(httpclient.DefaultConfig(), false)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	future := client.Execute(ctx, req)
//	resp, err := future.Get(ctx)
//
// A response holds its pool lease until its body is closed.
package httpclient
