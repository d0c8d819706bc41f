/******************************************************************************
 *
 *  Description :
 *
 *    Shutdown handling, adapted from server/shutdown.go: a signal handler
 *    plus a listen loop that closes the listener when the signal arrives
 *    and returns once the server's Serve call has returned. Connections
 *    already accepted are not waited for.
 *
 *****************************************************************************/

package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/collabhub/sessionproxy/internal/logs"
)

func signalHandler() <-chan bool {
	stop := make(chan bool)

	signchan := make(chan os.Signal, 1)
	signal.Notify(signchan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		sig := <-signchan
		logs.Info.Printf("signal received: '%s', shutting down", sig)
		stop <- true
	}()

	return stop
}

// listenAndServe runs srv against addr until either stop fires or the
// server errors out on its own.
func listenAndServe(addr string, srv *http.Server, stop <-chan bool) error {
	shuttingDown := false
	httpdone := make(chan bool)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	var serveErr error
	go func() {
		serveErr = srv.Serve(tcpGracefulListener{ln.(*net.TCPListener)})
		if shuttingDown {
			serveErr = nil
			logs.Info.Println("http server stopped")
		}
		httpdone <- true
	}()

loop:
	for {
		select {
		case <-stop:
			shuttingDown = true
			ln.Close()
			<-httpdone
			break loop
		case <-httpdone:
			break loop
		}
	}
	return serveErr
}

// tcpGracefulListener mirrors net/http's unexported tcpKeepAliveListener,
// copied here to retain access to the underlying TCPListener for Close.
type tcpGracefulListener struct {
	*net.TCPListener
}

func (ln tcpGracefulListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
