package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/c2fo/filestorage"
	"github.com/c2fo/filestorage/backend/dropbox"
	"github.com/c2fo/filestorage/options"
	"github.com/c2fo/filestorage/utils"
)

func main() {
	app := cli.NewApp()
	app.Name = "dbxcp"
	app.Usage = "Copies files between the local disk and Dropbox"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "token",
			Usage:  "dropbox access token",
			EnvVar: "FILESTORAGE_DROPBOX_ACCESS_TOKEN",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "log every request",
		},
		cli.BoolFlag{
			Name:  "read-only",
			Usage: "refuse every change",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "ls",
			Usage:     "list the files and folders of a folder",
			ArgsUsage: "[folder]",
			Action:    withStorage(list),
		},
		{
			Name:      "get",
			Usage:     "download a file",
			ArgsUsage: "<path> [local file, - for stdout]",
			Action:    withStorage(get),
		},
		{
			Name:      "put",
			Usage:     "upload a local file into a folder",
			ArgsUsage: "<local file> <folder>",
			Action:    withStorage(put),
		},
		{
			Name:      "rm",
			Usage:     "delete files",
			ArgsUsage: "<path>...",
			Action:    withStorage(remove),
		},
		{
			Name:      "mkdir",
			Usage:     "create a folder",
			ArgsUsage: "<folder>",
			Action:    withStorage(mkdir),
		},
		{
			Name:      "search",
			Usage:     "find files by name",
			ArgsUsage: "<pattern> [folder]",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "recursive, r", Usage: "include subfolders"},
			},
			Action: withStorage(search),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

type command func(ctx context.Context, store *dropbox.Storage, c *cli.Context) error

func withStorage(cmd command) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		logger := zap.NewNop()
		if c.GlobalBool("verbose") {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = l
		}
		defer func() { _ = logger.Sync() }()

		opts := []options.NewStorageOption[dropbox.Storage]{
			dropbox.WithAccessToken(c.GlobalString("token")),
			dropbox.WithLogger(logger),
		}
		if c.GlobalBool("read-only") {
			opts = append(opts, dropbox.WithReadOnly())
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return cmd(ctx, dropbox.NewStorage(opts...), c)
	}
}

func list(ctx context.Context, store *dropbox.Storage, c *cli.Context) error {
	folderID := folderArg(c.Args().First())

	folders, err := store.GetSubfolders(ctx, folderID)
	if err != nil {
		return err
	}
	for i := range folders {
		fmt.Println(color.BlueString("%s/", folders[i].Name))
	}

	files, err := store.GetDocumentsInFolder(ctx, folderID, nil, filestorage.SortOrder{Field: filestorage.FieldTitle})
	if err != nil {
		return err
	}
	for i := range files {
		f := &files[i]
		fmt.Printf("%-40s %10s  %s\n", f.FileName, humanize.IBytes(uint64(f.Size)), humanize.Time(f.LastModified))
	}
	return nil
}

func get(ctx context.Context, store *dropbox.Storage, c *cli.Context) error {
	if err := checkArgs(c, 1); err != nil {
		return err
	}
	folderID, id := fileArg(c.Args().Get(0))

	r, err := store.GetDocument(ctx, folderID, id, filestorage.CurrentVersion)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	target := c.Args().Get(1)
	if target == "" {
		target = id
	}
	var w io.Writer = os.Stdout
	if target != "-" {
		f, err := os.Create(target)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	n, err := io.Copy(w, r)
	if err != nil {
		return err
	}
	if target != "-" {
		fmt.Printf("Copied %s to %s (%s)\n", filestorage.URI(store.Scheme(), utils.ToFilePath(folderID, id)), target, humanize.IBytes(uint64(n)))
	}
	return nil
}

func put(ctx context.Context, store *dropbox.Storage, c *cli.Context) error {
	if err := checkArgs(c, 2); err != nil {
		return err
	}
	local := c.Args().Get(0)
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	doc := &filestorage.File{
		FolderID:     folderArg(c.Args().Get(1)),
		FileName:     filepath.Base(local),
		LastModified: info.ModTime(),
	}
	id, err := store.SaveDocument(ctx, doc, f, info.Size(), nil)
	if err != nil {
		return err
	}
	fmt.Printf("Copied %s to %s (%s)\n", local, filestorage.URI(store.Scheme(), utils.ToFilePath(id.FolderID, id.ID)), humanize.IBytes(uint64(info.Size())))
	return nil
}

func remove(ctx context.Context, store *dropbox.Storage, c *cli.Context) error {
	if err := checkArgs(c, 1); err != nil {
		return err
	}
	ids := make([]filestorage.IDTuple, 0, c.NArg())
	for _, arg := range c.Args() {
		folderID, id := fileArg(arg)
		ids = append(ids, filestorage.IDTuple{FolderID: folderID, ID: id})
	}

	notRemoved, err := store.RemoveDocuments(ctx, ids, false)
	if err != nil {
		return err
	}
	for _, id := range notRemoved {
		fmt.Println(color.YellowString("not removed: %s", utils.ToFilePath(id.FolderID, id.ID)))
	}
	return nil
}

func mkdir(ctx context.Context, store *dropbox.Storage, c *cli.Context) error {
	if err := checkArgs(c, 1); err != nil {
		return err
	}
	parent, name := fileArg(c.Args().Get(0))
	id, err := store.CreateFolder(ctx, &filestorage.Folder{ParentID: parent, Name: name})
	if err != nil {
		return err
	}
	fmt.Println(color.GreenString("created %s", id))
	return nil
}

func search(ctx context.Context, store *dropbox.Storage, c *cli.Context) error {
	if err := checkArgs(c, 1); err != nil {
		return err
	}
	files, err := store.Search(ctx, filestorage.SearchRequest{
		Pattern:           c.Args().Get(0),
		FolderID:          folderArg(c.Args().Get(1)),
		IncludeSubfolders: c.Bool("recursive"),
		Sort:              filestorage.SortOrder{Field: filestorage.FieldFileName},
	})
	if err != nil {
		return err
	}
	for i := range files {
		fmt.Printf("%s  %s\n", utils.ToFilePath(files[i].FolderID, files[i].ID), humanize.IBytes(uint64(files[i].Size)))
	}
	return nil
}

// folderArg turns a command line folder into a folder identifier; relative folders start at the root.
func folderArg(arg string) string {
	return utils.Normalize(utils.EnsureLeadingSlash(arg))
}

func fileArg(arg string) (folderID, id string) {
	return utils.Split(folderArg(arg))
}

func checkArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return fmt.Errorf("%s requires %d non-empty arguments: %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	for _, a := range c.Args()[:n] {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%s requires %d non-empty arguments: %s", c.Command.Name, n, c.Command.ArgsUsage)
		}
	}
	return nil
}

// describe renders err with its kind highlighted.
func describe(err error) string {
	var se *filestorage.Error
	if errors.As(err, &se) {
		msg := color.RedString(string(se.Kind))
		if se.Path != "" {
			msg += " " + se.Path
		}
		if se.Message != "" {
			msg += ": " + se.Message
		}
		return msg
	}
	if errors.Is(err, context.Canceled) {
		return color.YellowString("interrupted")
	}
	return color.RedString(err.Error())
}
