package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/youta-t/flarc"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/cmd/train_val_test_split/command"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/logger"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/profiles"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/try"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	loc := try.To(profiles.Detect(".")).OrFatal(logger)
	cmd := try.To(command.New(loc)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd, flarc.WithHelp(true)))
}
