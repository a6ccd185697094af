package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/youta-t/flarc"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/datasplit"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/logger"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/split"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/env"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/profiles"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/rest"
)

const (
	ARG_INPUT     = "INPUT"
	ARG_TEST_SIZE = "TEST_SIZE"
)

type Flag struct {
	RandomSeed   int           `flag:"random_seed" metavar:"SEED" help:"Seed for random number generator."`
	StratifyBy   string        `flag:"stratify_by" metavar:"COLUMN" help:"Column to use for stratification. 'none' not to stratify."`
	Profile      string        `flag:"profile" help:"knitprofile name to use"`
	ProfileStore string        `flag:"profile-store" help:"path to knitprofile store file"`
	Env          string        `flag:"env" help:"path to knitenv file"`
	WaitTimeout  time.Duration `flag:"wait-timeout" metavar:"DURATION" help:"How long to wait for knitfab to store each split."`
}

// Runner runs the job in the session.
type Runner func(ctx context.Context, logger *log.Logger, session *tracking.Session, conf datasplit.Config) error

type Option struct {
	run     Runner
	connect func(Flag) (rest.KnitClient, *env.KnitEnv, error)
}

func WithRunner(run Runner) func(*Option) *Option {
	return func(o *Option) *Option {
		o.run = run
		return o
	}
}

// WithConnector replaces how to get knitfab client and knitenv from flags.
func WithConnector(connect func(Flag) (rest.KnitClient, *env.KnitEnv, error)) func(*Option) *Option {
	return func(o *Option) *Option {
		o.connect = connect
		return o
	}
}

// New creates the command. Defaults of knitfab settings come from loc.
func New(loc profiles.Location, options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{
		run:     datasplit.Run,
		connect: Connect,
	}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Split a dataset into trainval and test, and publish them to knitfab.",
		Flag{
			RandomSeed:   int(datasplit.DefaultRandomSeed),
			StratifyBy:   datasplit.StratifyNone,
			Profile:      loc.Profile,
			ProfileStore: loc.ProfileStore,
			Env:          loc.Env,
			WaitTimeout:  tracking.DefaultWaitTimeout,
		},
		flarc.Args{
			{
				Name: ARG_INPUT, Required: true,
				Help: "Input artifact to split: NAME, NAME:latest, NAME:vN or knit#id:ID",
			},
			{
				Name: ARG_TEST_SIZE, Required: true,
				Help: "Size of the test split. Fraction of the dataset, or number of items",
			},
		},
		Task(option.connect, option.run),
		flarc.WithDescription(`
Split a dataset into trainval and test, and publish them to knitfab.

The dataset is a CSV Data in knitfab. Splits are published as new Data
named "trainval_data.csv" and "test_data.csv", in this order.

Example
-------

Hold out 20% of the latest "clean_sample.csv":

	{{ .Command }} clean_sample.csv:latest 0.2

Hold out 100 rows, keeping the ratio of "neighbourhood_group":

	{{ .Command }} --stratify_by neighbourhood_group clean_sample.csv 100
`),
	)
}

// Connect creates knitfab client and loads knitenv as flags say.
func Connect(flags Flag) (rest.KnitClient, *env.KnitEnv, error) {
	if flags.Profile == "" {
		return nil, nil, fmt.Errorf(
			"%w: no knitprofile is selected. Pass --profile, or put .knitprofile", flarc.ErrUsage,
		)
	}
	store, err := profiles.LoadProfileStore(flags.ProfileStore)
	if err != nil {
		if errors.Is(err, profiles.ErrProfileStoreNotFound) {
			return nil, nil, fmt.Errorf(
				"%w: knitprofile store (%s) is not found. Ask your admin to get knitprofile",
				err, flags.ProfileStore,
			)
		}
		return nil, nil, fmt.Errorf("%w: failed to load knitprofile store (%s)", err, flags.ProfileStore)
	}
	prof, err := store.Select(flags.Profile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: in the profile store (%s)", err, flags.ProfileStore)
	}

	e, err := env.LoadKnitEnv(flags.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to load knitenv (%s)", err, flags.Env)
	}

	client, err := rest.NewClient(prof)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%w: failed to create knit client. Your knitprofile (%s in %s) can be broken",
			err, flags.Profile, flags.ProfileStore,
		)
	}
	return client, e, nil
}

// ParseTestSize reads TEST_SIZE argument.
func ParseTestSize(s string) (split.Size, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return split.Size{}, fmt.Errorf("%w: %s should be a number: %q", flarc.ErrUsage, ARG_TEST_SIZE, s)
	}
	size, err := split.ParseSize(v)
	if err != nil {
		return split.Size{}, fmt.Errorf("%w: %s: %w", flarc.ErrUsage, ARG_TEST_SIZE, err)
	}
	return size, nil
}

func Task(
	connect func(Flag) (rest.KnitClient, *env.KnitEnv, error),
	run Runner,
) flarc.Task[Flag] {
	return func(ctx context.Context, cl flarc.Commandline[Flag], _ []any) error {
		l := logger.For(cl.Stderr(), cl.Fullname())
		flags := cl.Flags()
		args := cl.Args()

		size, err := ParseTestSize(args[ARG_TEST_SIZE][0])
		if err != nil {
			return err
		}
		if flags.WaitTimeout <= 0 {
			return fmt.Errorf("%w: --wait-timeout should be positive", flarc.ErrUsage)
		}
		conf := datasplit.Config{
			Input:      args[ARG_INPUT][0],
			TestSize:   size,
			RandomSeed: int64(flags.RandomSeed),
			StratifyBy: datasplit.Stratify(flags.StratifyBy),
		}

		client, knitenv, err := connect(flags)
		if err != nil {
			return err
		}

		session, err := tracking.Init(
			ctx, client, datasplit.JobType,
			tracking.WithLogger(l),
			tracking.WithTags(knitenv.Tags()),
			tracking.WithProgressOut(cl.Stderr()),
			tracking.WithWaitTimeout(flags.WaitTimeout),
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Close(); err != nil {
				l.Println(err)
			}
		}()

		return run(ctx, l, session, conf)
	}
}
