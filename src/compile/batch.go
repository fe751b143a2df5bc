package compile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"hsxcc/src/util"
)

// batch.go fans independent Compile calls out across goroutines bounded by
// Options.Threads, per SPEC_FULL.md §1.4. This replaces the teacher's
// channel-multiplexed util.ListenWrite/sync.WaitGroup worker-output pattern
// (src/main.go, backend/arm/armv8.go's genFunction worker split) with
// golang.org/x/sync/errgroup, since each file here produces its own
// self-contained output rather than contending for one shared writer.

// FileOutcome is one input file's batch result: either a written output
// pair or the fatal error that aborted it. Per SPEC_FULL.md §1.4, the
// driver collects every file's outcome rather than failing fast on the
// first error.
type FileOutcome struct {
	Input string
	Err   error
}

// CompileBatch compiles every file in opt.Inputs, bounded by opt.Threads
// concurrent workers, writing each file's `.hsxasm` output (and, if
// opt.JSONMetadataOut is set, its metadata document) before returning every
// file's outcome in input order.
func CompileBatch(opt util.Options) []FileOutcome {
	outcomes := make([]FileOutcome, len(opt.Inputs))

	g := new(errgroup.Group)
	if opt.Threads > 0 {
		g.SetLimit(opt.Threads)
	}

	for i, input := range opt.Inputs {
		i, input := i, input
		g.Go(func() error {
			err := compileOne(input, opt)
			outcomes[i] = FileOutcome{Input: input, Err: err}
			return nil // collected per-file, not propagated, so siblings keep running
		})
	}
	_ = g.Wait()

	return outcomes
}

// compileOne reads, compiles and writes the output pair for a single input
// file.
func compileOne(input string, opt util.Options) error {
	log := util.FunctionLogger(input)
	src, err := util.ReadSource(input)
	if err != nil {
		log.WithError(err).Error("failed to read source")
		return err
	}

	result, err := Compile(src, opt)
	if err != nil {
		log.WithError(err).Error("compilation failed")
		return err
	}

	asmPath := outputPath(input, opt.Out, ".hsxasm")
	if err := os.WriteFile(asmPath, []byte(result.Asm), 0644); err != nil {
		log.WithError(err).Error("failed to write assembly output")
		return err
	}

	if opt.JSONMetadataOut != "" {
		jsonPath := outputPath(input, opt.JSONMetadataOut, ".json")
		b, err := json.MarshalIndent(result.Metadata, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(jsonPath, b, 0644); err != nil {
			log.WithError(err).Error("failed to write metadata output")
			return err
		}
	}

	log.Debug("wrote compiler output")
	return nil
}

// outputPath derives an output file's path from its input path and a
// destination directory, swapping the input's extension for ext. An empty dir
// puts the output beside the input; a dir that names an existing file is
// returned as is.
func outputPath(input, dir, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ext
	if dir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return dir
	}
	return filepath.Join(dir, base)
}
