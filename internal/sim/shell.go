// Package sim is an interactive shell over the shortener service.
package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/serroba/turl/internal/shortener"
	"github.com/spf13/cobra"
)

const (
	Intro  = "Welcome to the Tiny-Url Simulation.\nType help or ? to list commands.\n"
	Prompt = "(tiny-url) "
)

// Service is the part of the shortener the shell drives.
type Service interface {
	BaseURL() string
	Shorten(ctx context.Context, req shortener.ShortenRequest) (*shortener.ShortLink, error)
	Lookup(ctx context.Context, key shortener.Key) (*shortener.Resolution, error)
	Delete(ctx context.Context, key shortener.Key) error
	Visit(ctx context.Context, key shortener.Key, meta shortener.ClickMeta) (*shortener.Resolution, error)
	Statistics(ctx context.Context, key shortener.Key) (*shortener.Statistics, error)
	Clicks(ctx context.Context, key shortener.Key) ([]shortener.Hit, error)
}

// Shell parses one command per line and prints outcomes the way an operator reads them.
type Shell struct {
	service Service
	out     io.Writer
	quit    bool
}

// NewShell creates a shell writing to out.
func NewShell(service Service, out io.Writer) *Shell {
	return &Shell{service: service, out: out}
}

// Run reads commands from in until exit, quit or end of input.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprint(s.out, Intro)

	scanner := bufio.NewScanner(in)

	for !s.quit {
		fmt.Fprint(s.out, Prompt)

		if !scanner.Scan() {
			fmt.Fprintln(s.out)

			return scanner.Err()
		}

		if err := s.Execute(ctx, scanner.Text()); err != nil {
			fmt.Fprintln(s.out, "*** "+err.Error())
		}
	}

	return nil
}

// Done reports whether exit or quit was issued.
func (s *Shell) Done() bool {
	return s.quit
}

// Execute runs a single command line. Domain failures are printed, not returned.
func (s *Shell) Execute(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	if args[0] == "?" {
		args[0] = "help"
	}

	root := s.commands()
	root.SetArgs(args)

	return root.ExecuteContext(ctx)
}

func (s *Shell) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "turl",
		Short:         "Tiny-Url simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(s.out)
	root.SetErr(s.out)
	root.CompletionOptions.DisableDefaultCmd = true

	key := func(args []string) shortener.Key {
		if len(args) == 0 {
			return ""
		}

		return shortener.ParseKey(args[0], s.service.BaseURL())
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "create <long-url> [short-url]",
			Short: "Create a Short URL for the Long URL",
			Long: "Create a Short URL for the specified Long URL.\n" +
				"A second argument is used as the key, with or without the short domain:\n" +
				"  create https://www.google.com ABCDEF\n" +
				"  create https://www.google.com https://turl.com/ABCDEF",
			Args: cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				var req shortener.ShortenRequest
				if len(args) > 0 {
					req.LongURL = args[0]
				}

				if len(args) > 1 {
					req.CustomKey = args[1]
				}

				return s.create(cmd.Context(), req)
			},
		},
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Delete a Short URL",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.delete(cmd.Context(), key(args))
			},
		},
		&cobra.Command{
			Use:     "click <key>",
			Aliases: []string{"redirect"},
			Short:   "Follow a Short URL and count the click",
			Args:    cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.click(cmd.Context(), key(args))
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Show the URL object behind a Short URL",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.get(cmd.Context(), key(args))
			},
		},
		&cobra.Command{
			Use:   "stats <key>",
			Short: "Show how often a Short URL was clicked",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.stats(cmd.Context(), key(args))
			},
		},
		&cobra.Command{
			Use:   "hits <key>",
			Short: "List the recorded clicks of a Short URL",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.hits(cmd.Context(), key(args))
			},
		},
		&cobra.Command{
			Use:     "exit",
			Aliases: []string{"quit"},
			Short:   "Close the simulation",
			Args:    cobra.NoArgs,
			Run: func(_ *cobra.Command, _ []string) {
				s.quit = true
			},
		},
	)

	return root
}

func (s *Shell) create(ctx context.Context, req shortener.ShortenRequest) error {
	link, err := s.service.Shorten(ctx, req)
	if err != nil {
		return s.report(err)
	}

	s.printf("%s has been created and mapped to %s.\n", link.ShortURL, link.LongURL)
	s.printf("The hash_key for this Short URL is %s.\n", link.Key)

	return nil
}

func (s *Shell) delete(ctx context.Context, key shortener.Key) error {
	if err := s.service.Delete(ctx, key); err != nil {
		return s.report(err)
	}

	s.printf("The Short URL for hash key '%s' has been deleted.\n", key)

	return nil
}

func (s *Shell) click(ctx context.Context, key shortener.Key) error {
	res, err := s.service.Visit(ctx, key, shortener.ClickMeta{})
	if err != nil {
		if errors.Is(err, shortener.ErrDeleted) {
			err = shortener.ErrNotFound
		}

		return s.report(err)
	}

	s.printf("Click Count for this Short URL has been incremented.\n")
	s.printf("The Long URL to redirect for hash key '%s' is %s\n", key, res.LongURL)

	return nil
}

type urlObject struct {
	URL          string  `json:"url"`
	ID           int64   `json:"id"`
	HashKey      string  `json:"hash_key"`
	URLID        int64   `json:"url_id"`
	DateCreated  string  `json:"date_created"`
	DateModified *string `json:"date_modified"`
	IsDeleted    bool    `json:"is_deleted"`
}

func (s *Shell) get(ctx context.Context, key shortener.Key) error {
	res, err := s.service.Lookup(ctx, key)
	if err != nil {
		return s.report(err)
	}

	obj := urlObject{
		URL:         res.LongURL,
		ID:          res.ID,
		HashKey:     string(res.HashKey),
		URLID:       res.URLID,
		DateCreated: res.DateCreated.Format(shortener.DeletedTimeLayout),
		IsDeleted:   res.IsDeleted,
	}

	if res.DateModified != nil {
		modified := res.DateModified.Format(shortener.DeletedTimeLayout)
		obj.DateModified = &modified
	}

	body, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("render url object: %w", err)
	}

	s.printf("The Long URL Object to redirect for hash key '%s' is:\n%s\n", key, body)

	return nil
}

func (s *Shell) stats(ctx context.Context, key shortener.Key) error {
	stats, err := s.service.Statistics(ctx, key)
	if err != nil {
		return s.report(err)
	}

	s.printf("The Short URL for hash key '%s' has had %d clicks during this simulation.\n", key, stats.NumClicks)

	return nil
}

func (s *Shell) hits(ctx context.Context, key shortener.Key) error {
	hits, err := s.service.Clicks(ctx, key)
	if err != nil {
		return s.report(err)
	}

	s.printf("The Short URL for hash key '%s' has %d recorded clicks.\n", key, len(hits))

	for _, h := range hits {
		s.printf("  #%d at %s\n", h.ID, h.DateCreated.Format(shortener.DeletedTimeLayout))
	}

	return nil
}

// report prints domain failures and passes anything else back to the loop.
func (s *Shell) report(err error) error {
	var (
		deleted    *shortener.DeletedError
		validation *shortener.ValidationError
	)

	switch {
	case errors.As(err, &deleted):
		s.printf("%s\n", deleted.Error())
	case errors.As(err, &validation):
		s.printf("%s\n", validation.Message)
	case errors.Is(err, shortener.ErrNotFound):
		s.printf("%s\n", shortener.MsgNotFound)
	case errors.Is(err, shortener.ErrConflict):
		s.printf("%s\n", shortener.MsgConflict)
	default:
		return err
	}

	return nil
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
