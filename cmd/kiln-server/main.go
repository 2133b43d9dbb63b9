// Command kiln-server is the TCP front-end for the storage engine,
// matching original_source/crates/kv/src/main.rs: bind a listener, spawn
// one goroutine per connection, and dispatch each request against a
// shared engine handle.
package main

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arvindkrishnan/kiln/config"
	"github.com/arvindkrishnan/kiln/engine"
	"github.com/arvindkrishnan/kiln/kvprotocol"
	"github.com/arvindkrishnan/kiln/store"
)

func main() {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	def := config.LoadEngineConfig(sugar)
	defPort := config.ServerPort(sugar)

	var (
		dir            string
		port           int
		memCapacity    int
		compactionOn   bool
		compactSeconds uint64
	)

	cmd := &cobra.Command{
		Use:   "kiln-server",
		Short: "TCP server for the kiln key-value store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(sugar, store.Options{
				Dir:                dir,
				MemtableCapacity:   memCapacity,
				CompactionEnabled:  compactionOn,
				CompactionInterval: time.Duration(compactSeconds) * time.Second,
			}, port)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&dir, "dir", def.DataDir, "data directory (WAL + segments live here)")
	flags.IntVar(&port, "port", defPort, "TCP port to listen on")
	flags.IntVar(&memCapacity, "mem", def.MemtableCapacity, "memtable capacity before an automatic flush")
	flags.BoolVar(&compactionOn, "compact", def.CompactionEnabled, "run the background compactor")
	flags.Uint64Var(&compactSeconds, "compact-interval", def.CompactionIntervalSeconds, "seconds between compaction sweeps")

	if err := cmd.Execute(); err != nil {
		sugar.Fatalw("kiln-server exited", "error", err)
	}
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	return logger
}

func run(logger *zap.SugaredLogger, opts store.Options, port int) error {
	eng, err := engine.New(engine.Options{Store: opts, Logger: logger})
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Infow("kiln-server listening", "addr", listener.Addr(), "dir", opts.Dir)

	var mu sync.RWMutex
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Warnw("accept failed", "error", err)
			continue
		}
		go handleConn(logger, &mu, eng, conn)
	}
}

// handleConn serves requests on conn until the client disconnects or a
// framing error occurs. Get takes the read lock, Set/Delete the write
// lock, mirroring the original source's Arc<RwLock<Engine>>.
func handleConn(logger *zap.SugaredLogger, mu *sync.RWMutex, eng *engine.Engine, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	wire := kvprotocol.NewConn(conn)
	lockedEngine := &rwLockedEngine{mu: mu, eng: eng}
	for {
		if err := kvprotocol.Serve(wire, lockedEngine); err != nil {
			logger.Debugw("connection closed", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

// rwLockedEngine adapts engine.Engine to kvprotocol.Engine, serializing
// writes against reads the way the original source's tokio::sync::RwLock
// serializes access to the shared Engine.
type rwLockedEngine struct {
	mu  *sync.RWMutex
	eng *engine.Engine
}

func (r *rwLockedEngine) Get(key []byte) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eng.Get(key)
}

func (r *rwLockedEngine) Set(key, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eng.Set(key, value)
}

func (r *rwLockedEngine) Delete(key []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eng.Delete(key)
}
