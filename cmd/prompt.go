package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// promptRunConfig asks for lower, upper and workers. A blank or non-numeric
// lower means automatic; upper and workers must be integers.
func promptRunConfig(in io.Reader, out io.Writer) (crawler.RunConfig, error) {
	sc := bufio.NewScanner(in)

	var rc crawler.RunConfig
	raw, err := ask(sc, out, "lower limit (leave blank to set automatically): ")
	if err != nil {
		return rc, err
	}
	if lower, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
		rc.Lower = &lower
	}

	raw, err = ask(sc, out, "upper limit: ")
	if err != nil {
		return rc, err
	}
	if rc.Upper, err = strconv.ParseInt(raw, 10, 64); err != nil {
		return rc, fmt.Errorf("%w: upper limit %q is not a number", crawler.ErrInvalidConfig, raw)
	}

	raw, err = ask(sc, out, "No. of workers: ")
	if err != nil {
		return rc, err
	}
	if rc.Workers, err = strconv.Atoi(raw); err != nil {
		return rc, fmt.Errorf("%w: worker count %q is not a number", crawler.ErrInvalidConfig, raw)
	}
	return rc, nil
}

func ask(sc *bufio.Scanner, out io.Writer, prompt string) (string, error) {
	if _, err := io.WriteString(out, prompt); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errors.New("read input: unexpected end of input")
	}
	return strings.TrimSpace(sc.Text()), nil
}
