package datasplit

import (
	"context"
	"log"
	"os"

	"github.com/hectane/go-acl"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking"
)

// publish writes the pool into a temporary file and logs it as an artifact.
//
// It returns after knitfab has stored the artifact. The temporary file is removed in any case.
func publish(ctx context.Context, logger *log.Logger, session *tracking.Session, pool Pool) error {
	f, err := os.CreateTemp("", pool.Split+"_data-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := acl.Chmod(f.Name(), os.FileMode(0600)); err != nil {
		return err
	}
	if err := pool.Table.Write(f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	artifact := tracking.NewArtifact(pool.ArtifactName(), pool.ArtifactType(), pool.Description())
	if err := artifact.AddFile(f.Name(), tracking.AsName(pool.ArtifactName())); err != nil {
		return err
	}

	logger.Printf("Logging artifact %s dataset", pool.ArtifactName())
	if err := session.LogArtifact(ctx, artifact); err != nil {
		return err
	}
	stored, err := artifact.Wait(ctx)
	if err != nil {
		return err
	}
	logger.Printf("%s is published as %s:%s", pool.ArtifactName(), tags.KeyKnitId, stored.KnitId)
	return nil
}
