package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"

	"tellcocli/internal/exporter"
)

const (
	choiceAll  = "All report sections"
	choiceQuit = "Quit"
)

// nopWriteCloser lets promptui write to a plain io.Writer
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// interactive lets the user pick sections until Quit, Ctrl-C or EOF
func interactive(ctx context.Context, stdin io.ReadCloser, stdout io.Writer, sections []exporter.Section, extras *extraSections) error {
	items := append(exporter.SectionNames(sections), extras.names()...)
	items = append(items, choiceAll, choiceQuit)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		prompt := promptui.Select{
			Label:  "Section",
			Items:  items,
			Size:   len(items),
			Stdin:  stdin,
			Stdout: nopWriteCloser{stdout},
		}
		_, choice, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}

		switch choice {
		case choiceQuit:
			return nil
		case choiceAll:
			printSections(stdout, sections)
		default:
			s, err := findSection(ctx, sections, extras, choice)
			if err != nil {
				return err
			}
			printSection(stdout, s)
		}
	}
}
