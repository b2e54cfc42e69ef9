package notify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Path is where clients connect.
const Path = "/events"

// Serve listens on addr and serves the hub at Path until ctx is done. It
// returns the bound address, which matters when addr uses port 0, and a
// channel that receives the server's exit error.
func Serve(ctx context.Context, addr string, hub *Hub) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, hub)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(shutdownCtx)
		_ = srv.Shutdown(shutdownCtx)
	}()

	return ln.Addr(), errc, nil
}
