package transport

import (
	"io"
	"os"
)

type ioduplex struct {
	io.WriteCloser
	io.ReadCloser
}

func (d *ioduplex) Close() error {
	if err := d.WriteCloser.Close(); err != nil {
		return err
	}
	return d.ReadCloser.Close()
}

// DialIO establishes a hostlink link over a WriteCloser and ReadCloser
// pair.
func DialIO(out io.WriteCloser, in io.ReadCloser, opts ...Option) *Link {
	return NewLink(&ioduplex{out, in}, opts...)
}

// DialStdio establishes a hostlink link over Stdout and Stdin.
func DialStdio(opts ...Option) *Link {
	return DialIO(os.Stdout, os.Stdin, opts...)
}
