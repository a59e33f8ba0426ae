// Package fahmunge merges Folding@home trajectory fragments into resumable
// per-clone stores and keeps atom-subset stores in lockstep with them.
//
// # Basic Usage
//
//	m, err := fahmunge.New(fahmunge.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	res, err := m.MergeArchivedFragments(ctx, "RUN0/CLONE0", "top.pdb", "out/run0-clone0.fahdb", 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("merged %d units, %d frames", len(res.Merged), res.Frames)
//
// Every merge is resumable: a unit is recorded in the store's ledger in the
// same transaction that appends its frames, so calling the same merge again
// after an interruption picks up at the first unrecorded unit.
//
// # Subsets
//
// [Munger.DeriveSubset] appends to a derived store every frame of a full
// store it has not seen yet, restricted to a list of atom indices. Both
// stores end up with the same frame and ledger counts.
//
// # Failure Policy
//
// By default the first fragment that cannot be loaded aborts the merge.
// [WithFailurePolicy] with [SkipAndContinue] logs the failure, leaves the
// fragment unrecorded for a later retry and carries on.
package fahmunge
