package bfs_test

import (
	"fmt"
	"io"

	"github.com/soypat/bfs"
)

func ExampleFS_basic_usage() {
	// device could be a disk image, RAM, or anything that implements the BlockDevice interface.
	device := bfs.NewBytesBlocks(bfs.DefaultNumBlocks)
	var formatter bfs.Formatter
	err := formatter.Format(device, bfs.FormatConfig{})
	if err != nil {
		panic(err)
	}
	var fs bfs.FS
	err = fs.Mount(device, bfs.ModeRW)
	if err != nil {
		panic(err)
	}
	file, err := fs.OpenFile("newfile.txt", bfs.ModeCreateAlways|bfs.ModeWrite)
	if err != nil {
		panic(err)
	}

	_, err = file.Write([]byte("Hello, World!"))
	if err != nil {
		panic(err)
	}
	err = file.Close()
	if err != nil {
		panic(err)
	}

	// Read back the file:
	file, err = fs.OpenFile("newfile.txt", bfs.ModeRead)
	if err != nil {
		panic(err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(data))
	file.Close()
	// Output:
	// Hello, World!
}

func ExampleFS_descriptors() {
	device := bfs.NewBytesBlocks(bfs.DefaultNumBlocks)
	var formatter bfs.Formatter
	if err := formatter.Format(device, bfs.FormatConfig{}); err != nil {
		panic(err)
	}
	var fs bfs.FS
	if err := fs.Mount(device, bfs.ModeRW); err != nil {
		panic(err)
	}
	fd, err := fs.Create("a.txt")
	if err != nil {
		panic(err)
	}
	fs.Write(fd, []byte("Hello World"))
	fs.Seek(fd, 5, io.SeekStart)
	fs.Write(fd, []byte("XXXXX"))
	fs.Seek(fd, 0, io.SeekStart)

	buf := make([]byte, 64)
	n, _ := fs.Read(fd, buf)
	size, _ := fs.Size(fd)
	fmt.Printf("%s (%d bytes)\n", buf[:n], size)
	fs.Close(fd)
	// Output:
	// HelloXXXXXd (11 bytes)
}
