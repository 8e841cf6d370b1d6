// Command admin inspects a network's sqlite index offline: recent ticks,
// coup history, and snapshot metadata.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"pyramid.gg/internal/persistence/indexdb"
)

func main() {
	var (
		dbPath = flag.String("db", "", "path to index.db")
		cmd    = flag.String("cmd", "ticks", "one of: ticks, coups, snapshots")
		nodeID = flag.String("node", "", "filter coups by attacker node id")
		limit  = flag.Int("limit", 20, "max rows")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[admin] ", log.LstdFlags)

	if *dbPath == "" {
		logger.Fatal("missing -db")
	}
	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		logger.Fatalf("open: %v", err)
	}
	defer idx.Close()

	switch *cmd {
	case "ticks":
		rows, err := idx.RecentTicks(*limit)
		if err != nil {
			logger.Fatalf("ticks: %v", err)
		}
		total, _ := idx.TickCount()
		fmt.Printf("ticks indexed: %d\n", total)
		for _, r := range rows {
			fmt.Printf("tick=%d joins=%d leaves=%d actions=%d digest=%s\n",
				r.Tick, r.Joins, r.Leaves, r.Actions, short(r.Digest))
		}

	case "coups":
		var (
			rows []indexdb.CoupRow
			err  error
		)
		if *nodeID != "" {
			rows, err = idx.CoupsByAttacker(*nodeID, *limit)
		} else {
			rows, err = idx.RecentCoups(*limit)
		}
		if err != nil {
			logger.Fatalf("coups: %v", err)
		}
		for _, r := range rows {
			outcome := "FAILED"
			if r.Success {
				outcome = "SUCCEEDED"
			}
			fmt.Printf("tick=%d %s -> %s %s cost=%d chance=%.1f\n",
				r.Tick, r.Attacker, r.Target, outcome, r.Cost, r.Chance)
		}

	case "snapshots":
		rows, err := idx.Snapshots(*limit)
		if err != nil {
			logger.Fatalf("snapshots: %v", err)
		}
		for _, r := range rows {
			fmt.Printf("tick=%d nodes=%d seed=%d path=%s\n", r.Tick, r.Nodes, r.Seed, r.Path)
		}

	default:
		logger.Fatalf("unknown -cmd %q", *cmd)
	}
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
