/*downsample introduces missingness into 23andme raw genotype exports
to benchmark how matching services cope with degraded input
*/
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/yassineS/GEDmatch-missingness-benchmark/downsample"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New("downsample", "process a 23andme raw genotype export: introduce random missingness at a chosen percentage and optionally pseudo-haploidize the surviving calls")

	inFile        = app.Flag("input_file", "path to the input 23andme file, plain text or zip").Short('i').Required().ExistingFile()
	pctToRemove   = app.Flag("percentage_to_remove", "percentage of loci to set missing, 0-100").Short('p').Required().Float64()
	calcStats     = app.Flag("calculate_stats", "calculate and print statistics before and after processing").Short('s').Bool()
	pseudoHaploid = app.Flag("pseudo_haploid", "generate pseudo-haploid genotypes by randomly selecting one allele per call").Short('a').Bool()
	outFile       = app.Flag("out", "path to the output file, derived from the input filename by default").Short('o').String()
	seed          = app.Flag("seed", "seed for the random number generator, seeded from the clock when omitted").Int64()
	debug         = app.Flag("debug", "print debugging information").Short('d').Bool()
)

var (
	cyan = color.New(color.FgCyan).SprintFunc()
)

func main() {
	app.UsageTemplate(kingpin.CompactUsageTemplate).Version("1.0.0").Author("Yassine Souilmi")
	kingpin.MustParse(app.Parse(os.Args[1:]))

	client, err := downsample.Newclient(downsample.Config{
		InputFile:     *inFile,
		OutputFile:    *outFile,
		Percentage:    *pctToRemove,
		PseudoHaploid: *pseudoHaploid,
		Seed:          *seed,
		Debug:         *debug,
		Command:       strings.Join(os.Args, " "),
	})
	if err != nil {
		app.Fatalf("%v", err)
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Prefix = "downsampling genotype calls   "
	if !*debug {
		s.Start()
	}

	report, err := client.Run()
	s.Stop()
	if err != nil {
		app.Fatalf("%v", err)
	}

	if *calcStats {
		fmt.Println("\nOriginal stats:")
		fmt.Println(report.Before)
		fmt.Println("\nProcessed stats:")
		fmt.Println(report.After)
	}

	fmt.Printf("\ndownsampled output at: %s\n", cyan(report.OutputFile))
	fmt.Printf("log written to: %s\n\n", cyan(report.LogFile))
}
