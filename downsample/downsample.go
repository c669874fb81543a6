package downsample

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/carbocation/pfx"
	filetype "gopkg.in/h2non/filetype.v1"
)

// Missing is the no-call marker used by 23andme raw exports.
const Missing = "--"

// ErrPercentRange is returned when the requested missingness
// percentage falls outside [0, 100].
var ErrPercentRange = errors.New("percentage_to_remove must be between 0 and 100")

// ParseError describes an input line that is not valid
// tab-separated genotype data.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Locus is one genotyped site from the raw export: marker
// name, chromosome, one-based position, and the diploid call
// (or `--` when no call was made).
type Locus struct {
	Rsid     string
	Chrom    string
	Pos      int
	Genotype string
}

func (l Locus) String() string {
	return fmt.Sprintf("%s\t%s\t%v\t%s", l.Rsid, l.Chrom, l.Pos, l.Genotype)
}

// IsMissing reports whether the locus carries no call.
func (l Locus) IsMissing() bool {
	return l.Genotype == Missing
}

// IsHet reports whether the locus carries a heterozygous
// diploid call. Half-calls and single-allele calls are not
// heterozygous.
func (l Locus) IsHet() bool {
	g := l.Genotype
	if len(g) != 2 || strings.ContainsRune(g, '-') {
		return false
	}
	return g[0] != g[1]
}

// Table holds a raw export in memory: the `#` header comment
// lines verbatim, and the loci in file order. Transformations
// never add, remove, or reorder loci; only the genotype
// strings change.
type Table struct {
	Comments []string
	Loci     []Locus
}

// Config collects the recognized options for one run.
type Config struct {
	InputFile     string  // required, path to a 23andme raw export, plain or zipped
	OutputFile    string  // optional, overrides the derived output filename
	Percentage    float64 // percentage of loci to set missing, in [0, 100]
	PseudoHaploid bool    // collapse surviving diploid calls to a single allele
	Seed          int64   // rng seed; 0 seeds from the clock
	Debug         bool    // echo the first loci after each step
	Command       string  // invoking command line, recorded in the log sidecar
}

// Client applies one configured downsampling run.
type Client struct {
	cfg Config
	rng *rand.Rand
}

// Newclient validates cfg and returns a Client ready to Run.
func Newclient(cfg Config) (*Client, error) {
	if cfg.Percentage < 0 || cfg.Percentage > 100 {
		return nil, fmt.Errorf("%w: got %v", ErrPercentRange, cfg.Percentage)
	}
	if _, err := os.Stat(cfg.InputFile); err != nil {
		return nil, pfx.Err(err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Report summarizes a completed run.
type Report struct {
	Before     Stats
	After      Stats
	OutputFile string
	LogFile    string
}

// Run performs the whole transformation: read, mask,
// optionally haploidize, write the degraded export plus a
// `.log` sidecar. The table is fully transformed in memory
// before the output file is created, so a failed run never
// leaves a partial output behind.
func (c *Client) Run() (*Report, error) {
	table, err := ReadTable(c.cfg.InputFile)
	if err != nil {
		return nil, err
	}
	c.debugHead("input", table)

	before := table.Stats()

	c.Mask(table)
	c.debugHead("masked", table)

	if c.cfg.PseudoHaploid {
		c.PseudoHaploidize(table)
		c.debugHead("pseudo-haploid", table)
	}

	after := table.Stats()

	outputFile := c.cfg.OutputFile
	if outputFile == "" {
		outputFile = c.OutputPath()
	}
	if err := table.Write(outputFile, c.describe()); err != nil {
		return nil, err
	}

	report := &Report{
		Before:     before,
		After:      after,
		OutputFile: outputFile,
		LogFile:    logPath(outputFile),
	}
	if err := writeLog(report, c.cfg.Command, c.describe()); err != nil {
		return nil, err
	}

	return report, nil
}

// Mask sets a random sample of loci to the no-call marker.
// The sample is drawn over all loci, including any that are
// already missing, so with pre-existing missingness the newly
// introduced fraction can fall below the requested
// percentage. The sample size is len(loci) * pct / 100,
// truncated.
func (c *Client) Mask(t *Table) {
	n := int(float64(len(t.Loci)) * c.cfg.Percentage / 100)
	for _, i := range c.rng.Perm(len(t.Loci))[:n] {
		t.Loci[i].Genotype = Missing
	}
}

// PseudoHaploidize collapses every surviving diploid call to
// a homozygous single-allele call, choosing between the two
// alleles uniformly at random. Missing loci stay missing, and
// half-calls such as "A-" or single-letter hemizygous calls
// become missing since no reliable allele pair exists.
func (c *Client) PseudoHaploidize(t *Table) {
	for i, l := range t.Loci {
		if l.IsMissing() {
			continue
		}
		g := l.Genotype
		if len(g) != 2 || strings.ContainsRune(g, '-') {
			t.Loci[i].Genotype = Missing
			continue
		}
		pick := g[c.rng.Intn(2)]
		t.Loci[i].Genotype = string([]byte{pick, pick})
	}
}

// OutputPath derives the output filename from the input:
// `{stem}_downsampled_{N}pct.txt`, with a `_pseudohaploid`
// tag before the extension when haploidization is requested.
func (c *Client) OutputPath() string {
	stem := strings.TrimSuffix(c.cfg.InputFile, filepath.Ext(c.cfg.InputFile))
	name := fmt.Sprintf("%s_downsampled_%dpct", stem, int(c.cfg.Percentage))
	if c.cfg.PseudoHaploid {
		name += "_pseudohaploid"
	}
	return name + ".txt"
}

func (c *Client) describe() string {
	desc := fmt.Sprintf("This file has been downsampled to introduce %v%% missingness", c.cfg.Percentage)
	if c.cfg.PseudoHaploid {
		desc += " and pseudo-haploidized"
	}
	return desc
}

func (c *Client) debugHead(stage string, t *Table) {
	if !c.cfg.Debug {
		return
	}
	fmt.Println(stage + ":")
	for i, l := range t.Loci {
		if i == 5 {
			break
		}
		fmt.Println(l)
	}
}

// ReadTable loads a raw export into memory. Zipped exports,
// as downloaded from 23andme, are detected by sniffing the
// file magic and read from the first archive member.
func ReadTable(inputFile string) (*Table, error) {
	var input io.Reader

	zipped, err := isZip(inputFile)
	if err != nil {
		return nil, pfx.Err(err)
	}

	if zipped {
		zipIn, err := zip.OpenReader(inputFile)
		if err != nil {
			return nil, pfx.Err(err)
		}
		defer zipIn.Close()

		if len(zipIn.File) == 0 {
			return nil, &ParseError{Line: 0, Text: inputFile, Msg: "zip archive contains no files"}
		}
		input, err = zipIn.File[0].Open()
		if err != nil {
			return nil, pfx.Err(err)
		}
	} else {
		f, err := os.Open(inputFile)
		if err != nil {
			return nil, pfx.Err(err)
		}
		defer f.Close()
		input = f
	}

	table := &Table{}
	scanner := bufio.NewScanner(input)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line[0] == '#' {
			table.Comments = append(table.Comments, line)
			continue
		}
		locus, err := parse(line, lineNum)
		if err != nil {
			return nil, err
		}
		table.Loci = append(table.Loci, locus)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return table, nil
}

func parse(line string, lineNum int) (Locus, error) {
	s := strings.Split(line, "\t")
	if len(s) < 4 {
		return Locus{}, &ParseError{Line: lineNum, Text: line, Msg: "expected 4 tab-separated columns"}
	}
	pos, err := strconv.Atoi(s[2])
	if err != nil {
		return Locus{}, &ParseError{Line: lineNum, Text: line, Msg: "position is not an integer"}
	}
	return Locus{s[0], s[1], pos, s[3]}, nil
}

func isZip(inputFile string) (bool, error) {
	input, err := os.Open(inputFile)
	if err != nil {
		return false, err
	}
	defer input.Close()

	bb := make([]byte, 100)
	if _, err := input.Read(bb); err != nil && err != io.EOF {
		return false, err
	}
	kind, err := filetype.Match(bb)
	if err != nil {
		return false, err
	}
	return kind.Extension == "zip", nil
}

// Write serializes the table to path in the input layout:
// header comments first, then one tab-separated row per
// locus. When info is non-empty it is inserted as an extra
// comment before the final header line, which in a 23andme
// export is the column-name comment.
func (t *Table) Write(path, info string) error {
	out, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for i, comment := range t.Comments {
		if info != "" && i == len(t.Comments)-1 {
			fmt.Fprintf(w, "# %s\n", info)
		}
		fmt.Fprintln(w, comment)
	}
	if info != "" && len(t.Comments) == 0 {
		fmt.Fprintf(w, "# %s\n", info)
	}
	for _, l := range t.Loci {
		fmt.Fprintln(w, l)
	}
	if err := w.Flush(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
