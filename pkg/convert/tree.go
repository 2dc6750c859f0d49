package convert

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// SaveExt is the file extension of console save blobs.
const SaveExt = ".DAT"

var slotPattern = regexp.MustCompile(`(DATA\d\d|SYSTEM)`)

// Job is one planned conversion.
type Job struct {
	Input  string
	OutDir string
}

// Result reports the outcome of one Job.
type Result struct {
	Job
	Output string
	Err    error
}

// Plan lists the conversions for a save directory. A directory holding save
// files directly converts only the first of them into out. Otherwise every
// save below in is converted into out/<slot>, where slot is DATAnn or SYSTEM
// taken from the name of the save's folder, or into out when there is none.
func Plan(in, out string) ([]Job, error) {
	top, err := filepath.Glob(filepath.Join(in, "*"+SaveExt))
	if err != nil {
		return nil, err
	}
	for _, p := range top {
		if isRegular(p) {
			return []Job{{Input: p, OutDir: out}}, nil
		}
	}

	var jobs []Job
	err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || filepath.Ext(d.Name()) != SaveExt {
			return nil
		}
		dst := out
		if slot := slotPattern.FindString(strings.ToUpper(filepath.Base(filepath.Dir(p)))); slot != "" {
			dst = filepath.Join(out, slot)
		}
		jobs = append(jobs, Job{Input: p, OutDir: dst})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSaves, in)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Input < jobs[j].Input })
	return jobs, nil
}

func isRegular(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// ConvertTree converts every save Plan finds. Failures are reported per file
// and never stop the other conversions. Cancelling ctx skips the files not yet
// started.
func (c *Converter) ConvertTree(ctx context.Context, in, out string) ([]Result, error) {
	jobs, err := Plan(in, out)
	if err != nil {
		return nil, err
	}

	numWorkers := c.jobs
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}
	results := make([]Result, len(jobs))

	type done struct {
		index  int
		result Result
	}

	workCh := make(chan int, len(jobs))
	resultCh := make(chan done, numWorkers*4)

	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for d := range resultCh {
			results[d.index] = d.result
		}
	}()

	var workerWg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for idx := range workCh {
				r := Result{Job: jobs[idx]}
				if err := ctx.Err(); err != nil {
					r.Err = err
				} else {
					r.Output, r.Err = c.ConvertFile(r.Input, r.OutDir)
				}
				if r.Err != nil {
					c.logger.Error("conversion failed", "path", r.Input, "error", r.Err)
				}
				resultCh <- done{idx, r}
			}
		}()
	}

	for i := range jobs {
		workCh <- i
	}
	close(workCh)
	workerWg.Wait()
	close(resultCh)
	collectWg.Wait()

	return results, ctx.Err()
}

// Failed counts the results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
