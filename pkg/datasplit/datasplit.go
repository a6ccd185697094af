// Package datasplit splits a tracked dataset into trainval and test pools,
// and publishes both of them as new tracked datasets.
package datasplit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/split"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/table"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking"
)

// JobType is the job category of the tracking session.
const JobType = "data_split"

const DefaultRandomSeed int64 = 42

// StratifyNone is the legacy value of stratify column meaning "do not stratify".
const StratifyNone = "none"

var (
	ErrFetch   = errors.New("cannot fetch dataset")
	ErrParse   = errors.New("cannot parse dataset")
	ErrSplit   = errors.New("cannot split dataset")
	ErrPublish = errors.New("cannot publish dataset")
)

type Config struct {
	// Input is a reference to the dataset artifact.
	Input string

	// TestSize is the size of the test pool.
	TestSize split.Size

	RandomSeed int64

	// StratifyBy is the column name to stratify by. nil not to stratify.
	StratifyBy *string
}

// Stratify reads a column name. Empty or "none" is nil.
func Stratify(column string) *string {
	if column == "" || column == StratifyNone {
		return nil
	}
	return &column
}

// record puts the configuration on the session.
func (c Config) record(conf *tracking.Config) {
	conf.Set("input", c.Input)
	conf.Set("test_size", c.TestSize)
	conf.Set("random_seed", c.RandomSeed)
	if c.StratifyBy == nil {
		conf.Set("stratify_by", StratifyNone)
	} else {
		conf.Set("stratify_by", *c.StratifyBy)
	}
}

// Pool is a part of the dataset to be published.
type Pool struct {
	// Split is "trainval" or "test".
	Split string
	Table *table.Table
}

func (p Pool) ArtifactName() string {
	return p.Split + "_data.csv"
}

func (p Pool) ArtifactType() string {
	return p.Split + "_data"
}

func (p Pool) Description() string {
	return p.Split + "_split_of_dataset"
}

// Split partitions rows of t into trainval and test pools, in this order.
func Split(t *table.Table, conf Config) ([]Pool, error) {
	var labels []string
	if conf.StratifyBy != nil {
		col, err := t.Column(*conf.StratifyBy)
		if err != nil {
			return nil, err
		}
		labels = col
	}

	p, err := split.TrainTestSplit(t.Len(), conf.TestSize, conf.RandomSeed, labels)
	if err != nil {
		return nil, err
	}
	return []Pool{
		{Split: "trainval", Table: t.Take(p.Train)},
		{Split: "test", Table: t.Take(p.Test)},
	}, nil
}

// Run fetches the dataset, splits it and publishes the pools.
//
// Pools are published one by one, trainval first.
// Each publication is waited for before the next one starts.
//
// # Returns
//
// - error: ErrFetch, ErrParse, ErrSplit or ErrPublish wrapping the cause.
// Nothing is published when the error is other than ErrPublish.
func Run(ctx context.Context, logger *log.Logger, session *tracking.Session, conf Config) error {
	conf.record(session.Config())

	logger.Printf("Downloading artifact %s", conf.Input)
	used, err := session.UseArtifact(ctx, conf.Input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	path, err := used.File()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	dataset, err := table.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, conf.Input, err)
	}

	logger.Println("Splitting the dataset")
	pools, err := Split(dataset, conf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSplit, err)
	}

	for _, pool := range pools {
		logger.Printf("Uploading the %s dataset", pool.ArtifactName())
		if err := publish(ctx, logger, session, pool); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPublish, pool.ArtifactName(), err)
		}
	}
	return nil
}
