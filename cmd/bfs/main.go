package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/soypat/bfs"
)

const usage = `usage: bfs [flags] <command> [args]

commands:
  format            create and format the disk image
  info              print the volume geometry
  ls                list files
  put <src> [name]  copy host file src into the volume
  get <name> <dst>  copy file name out of the volume to host file dst
  cat <name>        print the contents of a file
  rm <name>         remove a file
  stat <name>       print file information

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	defaultDisk := os.Getenv("BFS_DISK")
	if defaultDisk == "" {
		defaultDisk = "BFSDISK"
	}
	flags := flag.NewFlagSet("bfs", flag.ContinueOnError)
	flags.SetOutput(stdout)
	diskPath := flags.String("disk", defaultDisk, "path to the disk image (default from BFS_DISK)")
	numBlocks := flags.Int("blocks", bfs.DefaultNumBlocks, "number of blocks for format")
	numInodes := flags.Int("inodes", bfs.DefaultNumInodes, "number of inodes for format")
	verbose := flags.Bool("v", false, "log debug output to stderr")
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}
	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	cmd, cmdArgs := flags.Arg(0), flags.Args()[1:]
	if cmd == "format" {
		err := bfs.FormatImage(*diskPath, bfs.FormatConfig{NumBlocks: *numBlocks, NumInodes: *numInodes})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "formatted %s: %d blocks, %d inodes\n", *diskPath, *numBlocks, *numInodes)
		return nil
	}

	var nargs int
	mode := bfs.ModeRead
	switch cmd {
	case "info", "ls":
	case "cat", "stat":
		nargs = 1
	case "rm":
		nargs, mode = 1, bfs.ModeRW
	case "get":
		nargs = 2
	case "put":
		nargs, mode = 1, bfs.ModeRW
		if len(cmdArgs) == 2 {
			nargs = 2
		}
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if len(cmdArgs) != nargs {
		return fmt.Errorf("%s: want %d arguments, got %d", cmd, nargs, len(cmdArgs))
	}

	img, err := bfs.OpenImage(*diskPath, mode)
	if err != nil {
		return err
	}
	defer img.Close()
	var fsys bfs.FS
	fsys.SetLogger(logger)
	if err := fsys.Mount(img, mode); err != nil {
		return err
	}
	defer fsys.Unmount()

	switch cmd {
	case "info":
		fmt.Fprint(stdout, fsys.Superblock())
		fmt.Fprintf(stdout, "FreeBlocks:%d\n", fsys.FreeBlocks())
	case "ls":
		return fsys.ForEachFile(func(fi *bfs.FileInfo) error {
			_, err := fmt.Fprintf(stdout, "%-27s %8d\n", fi.Name(), fi.Size())
			return err
		})
	case "stat":
		fi, err := fsys.Stat(cmdArgs[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "name:%s\ninode:%d\nsize:%d\nblocks:%d\n", fi.Name(), fi.Inode(), fi.Size(), fi.Blocks())
	case "cat":
		return copyOut(&fsys, cmdArgs[0], stdout)
	case "get":
		dst, err := os.Create(cmdArgs[1])
		if err != nil {
			return err
		}
		if err := copyOut(&fsys, cmdArgs[0], dst); err != nil {
			dst.Close()
			return err
		}
		return dst.Close()
	case "put":
		name := filepath.Base(cmdArgs[0])
		if nargs == 2 {
			name = cmdArgs[1]
		}
		if err := copyIn(&fsys, cmdArgs[0], name); err != nil {
			return err
		}
		return syncImage(&fsys, img)
	case "rm":
		if err := fsys.Remove(cmdArgs[0]); err != nil {
			return err
		}
		return syncImage(&fsys, img)
	}
	return nil
}

// syncImage unmounts fsys and commits the image to stable storage.
func syncImage(fsys *bfs.FS, img *bfs.DiskImage) error {
	if err := fsys.Unmount(); err != nil {
		return err
	}
	return img.Sync()
}

func copyOut(fsys *bfs.FS, name string, dst io.Writer) error {
	fp, err := fsys.OpenFile(name, bfs.ModeRead)
	if err != nil {
		return err
	}
	defer fp.Close()
	_, err = io.Copy(dst, fp)
	return err
}

func copyIn(fsys *bfs.FS, src, name string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	fp, err := fsys.OpenFile(name, bfs.ModeCreateAlways|bfs.ModeWrite)
	if err != nil {
		return err
	}
	_, err = fp.Write(data)
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	return err
}
