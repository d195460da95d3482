// Command diffkitchen applies or creates PAMZ-format diff archives.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/n-peugnet/diffkitchen/archive"
	"github.com/n-peugnet/diffkitchen/hashutil"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/logger"
	"github.com/n-peugnet/diffkitchen/prepared"
	"github.com/n-peugnet/diffkitchen/recipe"
	"github.com/n-peugnet/diffkitchen/session"
)

type command struct {
	Flag  *flag.FlagSet
	Usage string
	Help  string
	Run   func([]string) error
}

const (
	name        = "diffkitchen"
	baseUsage   = "<command> [<options>] [--] <args>"
	applyUsage  = "[<options>] [--] <archive> <output>"
	applyHelp   = "Apply a diff archive, reconstructing its target at <output>"
	createUsage = "[<options>] [--] <target-file> <archive-output>"
	createHelp  = "Create a diff archive that reconstructs <target-file>, against --source if given"
)

var (
	logLevel   int
	sourcePath string

	applyCmd    = flag.NewFlagSet("apply", flag.ExitOnError)
	createCmd   = flag.NewFlagSet("create", flag.ExitOnError)
	subcommands = map[string]command{
		applyCmd.Name():  {applyCmd, applyUsage, applyHelp, applyMain},
		createCmd.Name(): {createCmd, createUsage, createHelp, createMain},
	}
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s %s\n\ncommands:\n", name, baseUsage)
		for _, s := range subcommands {
			fmt.Printf("  %s\t%s\n", s.Flag.Name(), s.Help)
		}
		os.Exit(1)
	}
	for _, s := range subcommands {
		s.Flag.IntVar(&logLevel, "v", 3, "log verbosity level (0-4)")
		s.Flag.StringVar(&sourcePath, "source", "", "path to the base file this archive diffs against")
	}
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
	}
	cmd, exists := subcommands[args[0]]
	if !exists {
		fmt.Fprintf(flag.CommandLine.Output(), "error: unknown command %s\n\n", args[0])
		flag.Usage()
	}
	cmd.Flag.Usage = func() {
		fmt.Fprintf(cmd.Flag.Output(), "usage: %s %s %s\n\noptions:\n", name, cmd.Flag.Name(), cmd.Usage)
		cmd.Flag.PrintDefaults()
		os.Exit(1)
	}
	cmd.Flag.Parse(args[1:])
	logger.Init(logLevel)
	if err := cmd.Run(cmd.Flag.Args()); err != nil {
		fmt.Fprintf(cmd.Flag.Output(), "error: %s\n\n", err)
		cmd.Flag.Usage()
	}
}

// fileAsPreparedItem builds a lazily-opened, random-access prepared item
// over the file at path, without holding it open between reads.
func fileAsPreparedItem(path string) (prepared.Item, error) {
	fr, err := dkio.OpenFileReader(path)
	if err != nil {
		return nil, err
	}
	size := fr.Size()
	fr.Close()
	return prepared.FromReaderFactory(size, func() (dkio.Reader, error) {
		return dkio.OpenFileReader(path)
	}), nil
}

// hashFile computes a content-identity Definition for the file at path.
func hashFile(path string) (*item.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	h, err := hashutil.HashReader(item.SHA256, f)
	if err != nil {
		return nil, err
	}
	return item.New(info.Size(), h)
}

func applyMain(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("wrong number of args")
	}
	archivePath, outPath := args[0], args[1]

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	isStandard, r, err := archive.IsStandardFormat(f)
	if err != nil {
		return err
	}
	var a *archive.Archive
	if isStandard {
		a, err = archive.Decode(r)
	} else {
		a, err = archive.DecodeLegacy(r)
	}
	if err != nil {
		return fmt.Errorf("decode archive: %w", err)
	}

	s := session.NewApplySession()
	var sourceItem prepared.Item
	if sourcePath != "" {
		sourceItem, err = fileAsPreparedItem(sourcePath)
		if err != nil {
			return err
		}
	}
	if err := s.AddArchive(a, sourceItem); err != nil {
		return err
	}

	s.RequestItem(a.TargetItem)
	s.ProcessRequestedItems()
	for _, e := range s.Errors() {
		logger.Errorf("apply: %s", e)
	}
	if err := s.ExtractItemToPath(a.TargetItem, outPath); err != nil {
		return fmt.Errorf("extract target: %w", err)
	}
	return nil
}

// createMain assembles a minimal archive for target-file: a single
// copy_source recipe spanning the whole file when --source is given (a
// "identical to source" archive), or a single all_zero recipe otherwise.
// Computing an actual byte-level delta between two arbitrary files is a
// content-matching/diffing problem this tool's Non-goals exclude (it
// consumes already-determined recipes, per spec.md); this subcommand
// exists to exercise the archive writer end to end, not to replace a diff
// generator.
func createMain(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("wrong number of args")
	}
	targetPath, archiveOut := args[0], args[1]

	targetDef, err := hashFile(targetPath)
	if err != nil {
		return err
	}

	c := session.NewCreateSession(targetDef)
	if sourcePath != "" {
		sourceDef, err := hashFile(sourcePath)
		if err != nil {
			return err
		}
		c.SetSource(sourceDef)
		c.AddRecipe(recipe.NameCopySource, targetDef, []uint64{0}, nil)
	} else {
		c.AddRecipe(recipe.NameAllZero, targetDef, []uint64{uint64(targetDef.Length())}, nil)
	}

	out, err := os.Create(archiveOut)
	if err != nil {
		return err
	}
	defer out.Close()
	return c.WriteDiff(out)
}
