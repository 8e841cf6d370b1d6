package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"pyramid.gg/internal/persistence/archive"
	"pyramid.gg/internal/persistence/indexdb"
	persistlog "pyramid.gg/internal/persistence/log"
	"pyramid.gg/internal/persistence/r2s3"
	"pyramid.gg/internal/persistence/snapshot"
	"pyramid.gg/internal/sim/pyramid"
	"pyramid.gg/internal/sim/tuning"
	"pyramid.gg/internal/transport/ws"
)

// envOverrides are applied on top of flags so deployments can configure
// the server without editing unit files.
type envOverrides struct {
	Addr        string `env:"PYR_ADDR"`
	DataDir     string `env:"PYR_DATA_DIR"`
	NetworkID   string `env:"PYR_NETWORK_ID"`
	DisableDB   bool   `env:"PYR_DISABLE_DB"`
	EnablePprof bool   `env:"PYR_ENABLE_PPROF_HTTP"`

	// Offsite mirror; disabled unless all four are set.
	R2Endpoint  string `env:"PYR_R2_ENDPOINT"`
	R2Bucket    string `env:"PYR_R2_BUCKET"`
	R2AccessKey string `env:"PYR_R2_ACCESS_KEY_ID"`
	R2SecretKey string `env:"PYR_R2_SECRET_ACCESS_KEY"`
	R2Prefix    string `env:"PYR_R2_PREFIX"`
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		networkID  = flag.String("network", "network_1", "network id")
		seed       = flag.Int64("seed", 1337, "network seed (used only when starting fresh)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit/snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		eraTicks      = flag.Int("era_ticks", 0, "archive the snapshot at every era boundary of this many ticks (0 disables)")
		keepSnapshots = flag.Int("keep_snapshots", 24, "working snapshots to retain after each write (0 disables pruning)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		logger.Fatalf("env: %v", err)
	}
	if ov.Addr != "" {
		*addr = ov.Addr
	}
	if ov.DataDir != "" {
		*dataDir = ov.DataDir
	}
	if ov.NetworkID != "" {
		*networkID = ov.NetworkID
	}
	if ov.DisableDB {
		*disableDB = true
	}

	networkDir := filepath.Join(*dataDir, "networks", *networkID)
	_ = os.MkdirAll(networkDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		latest, err := snapshot.Latest(filepath.Join(networkDir, "snapshots"))
		if err != nil {
			logger.Fatalf("scan snapshots: %v", err)
		}
		snapshotToLoad = latest
	}

	// Load tuning (required for a fresh network; optional for resumes,
	// since the snapshot carries the effective values).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		if os.IsNotExist(tuneErr) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		var err error
		idx, err = indexdb.OpenSQLite(filepath.Join(networkDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	var nw *pyramid.Network
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.NetworkID != "" && snap.Header.NetworkID != *networkID {
			logger.Fatalf("snapshot network id mismatch: flag=%s snap=%s", *networkID, snap.Header.NetworkID)
		}
		nw, err = pyramid.NewFromSnapshot(snap)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), nw.CurrentTick())
	} else {
		var err error
		nw, err = pyramid.New(pyramid.NetworkConfig{
			ID:                 *networkID,
			TickRateHz:         tune.TickRateHz,
			Seed:               *seed,
			PowerBase:          tune.Economy.PowerBase,
			MoneyWeight:        tune.Economy.MoneyWeight,
			RecruitWeight:      tune.Economy.RecruitWeight,
			InvestBoost:        tune.Economy.InvestBoost,
			CoupCostFactor:     tune.Economy.CoupCostFactor,
			CoupCooldownTicks:  tune.Economy.CoupCooldownTicks,
			InvestCapPermille:  tune.Economy.InvestCapPermille,
			PayoutPermille:     tune.Economy.PayoutPermille,
			PromotionRecruits:  tune.Economy.PromotionRecruits,
			MaxChildren:        tune.Economy.MaxChildren,
			FounderMoney:       tune.Economy.FounderMoney,
			StarterMoney:       tune.Economy.StarterMoney,
			RecruitMoney:       tune.Economy.RecruitMoney,
			TierReach:          tune.Economy.TierReach,
			SnapshotEveryTicks: tune.SnapshotEveryTicks,
			RateLimits: pyramid.RateLimitConfig{
				SayWindowTicks:  tune.RateLimits.SayWindowTicks,
				SayMax:          tune.RateLimits.SayMax,
				CoupWindowTicks: tune.RateLimits.CoupWindowTicks,
				CoupMax:         tune.RateLimits.CoupMax,
			},
		})
		if err != nil {
			logger.Fatalf("network: %v", err)
		}
	}

	var mirror *r2s3.Mirror
	if ov.R2Endpoint != "" || ov.R2Bucket != "" || ov.R2AccessKey != "" || ov.R2SecretKey != "" {
		client, err := r2s3.New(ov.R2Endpoint, ov.R2Bucket, ov.R2AccessKey, ov.R2SecretKey)
		if err != nil {
			logger.Fatalf("mirror client: %v", err)
		}
		mirror = r2s3.NewMirror(client, *dataDir, ov.R2Prefix, 2, 2048, 25*time.Millisecond, logger)
		defer mirror.Close()
		logger.Printf("mirroring to bucket=%s prefix=%s", ov.R2Bucket, ov.R2Prefix)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(networkDir)
	auditLog := persistlog.NewAuditLogger(networkDir)
	defer tickLog.Close()
	defer auditLog.Close()
	nw.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	nw.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	// Snapshot writer.
	snapCh := make(chan pyramid.Snapshot, 2)
	nw.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				snapDir := filepath.Join(networkDir, "snapshots")
				path := snapshot.Path(snapDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
				mirror.Enqueue(path)

				if era, archived, ok, err := archive.ArchiveEraSnapshot(networkDir, path, snap, *eraTicks); err != nil {
					logger.Printf("era archive: %v", err)
				} else if ok {
					logger.Printf("archived era=%d snapshot=%s", era, filepath.Base(archived))
					mirror.Enqueue(archived)
				}
				if removed, err := archive.PruneSnapshots(snapDir, *keepSnapshots); err != nil {
					logger.Printf("snapshot prune: %v", err)
				} else if removed > 0 {
					logger.Printf("pruned %d old snapshots", removed)
				}
			}
		}
	}()

	go func() {
		if err := nw.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("network stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := nw.Metrics()

		fmt.Fprintf(rw, "# HELP pyramid_network_tick Current network tick.\n")
		fmt.Fprintf(rw, "# TYPE pyramid_network_tick gauge\n")
		fmt.Fprintf(rw, "pyramid_network_tick{network=%q} %d\n", *networkID, m.Tick)

		fmt.Fprintf(rw, "# HELP pyramid_network_nodes Current number of nodes in the tree.\n")
		fmt.Fprintf(rw, "# TYPE pyramid_network_nodes gauge\n")
		fmt.Fprintf(rw, "pyramid_network_nodes{network=%q} %d\n", *networkID, m.Nodes)

		fmt.Fprintf(rw, "# HELP pyramid_network_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE pyramid_network_clients gauge\n")
		fmt.Fprintf(rw, "pyramid_network_clients{network=%q} %d\n", *networkID, m.Clients)

		fmt.Fprintf(rw, "# HELP pyramid_network_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE pyramid_network_queue_depth gauge\n")
		fmt.Fprintf(rw, "pyramid_network_queue_depth{network=%q,queue=%q} %d\n", *networkID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "pyramid_network_queue_depth{network=%q,queue=%q} %d\n", *networkID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "pyramid_network_queue_depth{network=%q,queue=%q} %d\n", *networkID, "attach", m.QueueDepths.Attach)
		fmt.Fprintf(rw, "pyramid_network_queue_depth{network=%q,queue=%q} %d\n", *networkID, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP pyramid_network_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE pyramid_network_step_ms gauge\n")
		fmt.Fprintf(rw, "pyramid_network_step_ms{network=%q} %.3f\n", *networkID, m.StepMS)

		if mirror != nil {
			ms := mirror.Stats()
			fmt.Fprintf(rw, "# HELP pyramid_mirror_queue_depth Offsite mirror upload backlog.\n")
			fmt.Fprintf(rw, "# TYPE pyramid_mirror_queue_depth gauge\n")
			fmt.Fprintf(rw, "pyramid_mirror_queue_depth{network=%q} %d\n", *networkID, ms.QueueDepth)
			fmt.Fprintf(rw, "# HELP pyramid_mirror_uploads_total Offsite mirror upload attempts by result.\n")
			fmt.Fprintf(rw, "# TYPE pyramid_mirror_uploads_total counter\n")
			fmt.Fprintf(rw, "pyramid_mirror_uploads_total{network=%q,result=%q} %d\n", *networkID, "success", ms.UploadSuccessTotal)
			fmt.Fprintf(rw, "pyramid_mirror_uploads_total{network=%q,result=%q} %d\n", *networkID, "fail", ms.UploadFailTotal)
			fmt.Fprintf(rw, "pyramid_mirror_uploads_total{network=%q,result=%q} %d\n", *networkID, "dropped", ms.DroppedTotal)
		}
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			NetworkID string                 `json:"network_id"`
			Tick      uint64                 `json:"tick"`
			Metrics   pyramid.NetworkMetrics `json:"metrics"`
		}{
			NetworkID: *networkID,
			Tick:      nw.CurrentTick(),
			Metrics:   nw.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	if ov.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(nw, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type multiTickLogger struct {
	a pyramid.TickLogger
	b pyramid.TickLogger
}

func (m multiTickLogger) WriteTick(entry pyramid.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a pyramid.AuditLogger
	b pyramid.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry pyramid.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
