package fahmunge_test

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	logAdapter "github.com/bft-labs/fahmunge/internal/adapters/log"
	"github.com/bft-labs/fahmunge/pkg/fahmunge"
)

// ExampleNew demonstrates merging one clone and deriving its protein store.
func ExampleNew() {
	logger := logAdapter.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))

	m, err := fahmunge.New(
		fahmunge.WithLogger(logger),
		fahmunge.WithFailurePolicy(fahmunge.SkipAndContinue),
	)
	if err != nil {
		fmt.Printf("failed to create munger: %v\n", err)
		return
	}

	ctx := context.Background()
	res, err := m.MergeArchivedFragments(ctx, "/data/PROJ10495/RUN0/CLONE0", "/data/PROJ10495/top.pdb", "/out/all-atoms/run0-clone0.fahdb", 1)
	if err != nil {
		fmt.Printf("merge failed: %v\n", err)
		return
	}
	if err := res.Err(); err != nil {
		fmt.Printf("some fragments were skipped: %v\n", err)
	}

	top, err := m.Topology("/out/all-atoms/run0-clone0.fahdb")
	if err != nil {
		fmt.Printf("failed to read topology: %v\n", err)
		return
	}
	protein, err := top.Select("protein")
	if err != nil {
		fmt.Printf("failed to select atoms: %v\n", err)
		return
	}

	if _, err := m.DeriveSubset(ctx, "/out/all-atoms/run0-clone0.fahdb", "/out/protein/run0-clone0.fahdb", protein, 1); err != nil {
		fmt.Printf("derive failed: %v\n", err)
	}
}
