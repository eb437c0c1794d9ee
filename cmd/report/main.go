package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/jira"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/report"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/services"
	"github.com/charmbracelet/huh"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

func main() {
	var (
		boardID  = flag.Int64("board", 0, "board id (defaults to JIRA_BOARD_ID)")
		sprintID = flag.Int64("sprint", 0, "sprint id; skips the sprint picker")
		hpsp     = flag.Float64("hours-per-sp", 0, "hours per story point (defaults to HOURS_PER_STORY_POINT)")
		outDir   = flag.String("out", ".", "directory for the CSV export")
		edit     = flag.Bool("edit", false, "correct values interactively before exporting")
		verbose  = flag.Bool("v", false, "log tracker calls")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, options{
		boardID: *boardID, sprintID: *sprintID, hpsp: *hpsp, outDir: *outDir, edit: *edit, verbose: *verbose,
	}); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			pterm.Warning.Println("Cancelled.")
			return
		}
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

type options struct {
	boardID  int64
	sprintID int64
	hpsp     float64
	outDir   string
	edit     bool
	verbose  bool
}

func run(ctx context.Context, o options) error {
	cfg := config.Load()
	log := zerolog.Nop()
	if o.verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	jiraOpts := jira.Options{
		RelayURL:       cfg.JiraRelayURL,
		Timeout:        cfg.HTTPTimeout,
		RateLimitRPS:   cfg.JiraRateLimitRPS,
		RateLimitBurst: cfg.JiraRateLimitBurst,
	}
	svc := services.New(cfg, log, func(conn jira.Connection) services.JiraClient {
		return jira.NewClient(conn, jiraOpts, log)
	}, services.Deps{})

	pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack, pterm.Bold)).
		Println("Sprint Report")

	req := services.ReportRequest{BoardID: o.boardID, HoursPerStoryPoint: o.hpsp}
	if o.sprintID > 0 {
		req.SprintID = &o.sprintID
	} else {
		id, err := pickSprint(ctx, svc, o.boardID)
		if err != nil {
			return err
		}
		req.SprintID = &id
	}

	spinner, _ := pterm.DefaultSpinner.Start("Collecting issues, worklogs and comments...")
	data, stats, err := svc.BuildReport(ctx, req)
	spinner.Stop()
	if err != nil {
		return err
	}
	if stats.Degraded > 0 {
		pterm.Warning.Printfln("%d lookups failed; affected hours or comments are missing.", stats.Degraded)
	}
	printReport(data)

	if o.edit {
		if data, err = editLoop(data); err != nil {
			return err
		}
	}

	path := filepath.Join(o.outDir, report.FileName(time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := report.WriteCSV(f, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	pterm.Success.Printfln("CSV written to %s", path)
	return nil
}

func pickSprint(ctx context.Context, svc *services.Service, boardID int64) (int64, error) {
	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Loading sprints...")
	sprints, err := svc.ListSprints(ctx, jira.Connection{}, boardID)
	spinner.Stop()
	if err != nil {
		return 0, err
	}
	selected, ok := services.DefaultSelection(sprints, 0)
	if !ok {
		return 0, domain.ErrNoSprint
	}
	opts := make([]huh.Option[int64], len(sprints))
	for i, s := range sprints {
		opts[i] = huh.NewOption(s.Label(), s.ID)
	}
	err = huh.NewSelect[int64]().
		Title("Sprint").
		Options(opts...).
		Value(&selected).
		Run()
	return selected, err
}

const doneEditing = "__done__"

// editLoop lets the user correct ticket values until they choose to export.
func editLoop(data domain.SprintData) (domain.SprintData, error) {
	for {
		userOpts := []huh.Option[string]{huh.NewOption("Done, export CSV", doneEditing)}
		for _, u := range data.Users {
			userOpts = append(userOpts, huh.NewOption(u, u))
		}
		var user string
		if err := huh.NewSelect[string]().Title("Edit tickets of").Options(userOpts...).Value(&user).Run(); err != nil {
			return data, err
		}
		if user == doneEditing {
			return data, nil
		}

		ticketOpts := make([]huh.Option[int], 0, len(data.UserData[user]))
		for i, t := range data.UserData[user] {
			ticketOpts = append(ticketOpts, huh.NewOption(t.DisplayLabel+" "+t.Summary, i))
		}
		var (
			index int
			field = report.FieldHoursLogged
			value string
		)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[int]().Title("Ticket").Options(ticketOpts...).Value(&index),
				huh.NewSelect[string]().Title("Field").Options(
					huh.NewOption("Hours logged (e.g. 2h 30m)", report.FieldHoursLogged),
					huh.NewOption("Story points", report.FieldStoryPoints),
					huh.NewOption("Summary", report.FieldSummary),
					huh.NewOption("Comments", report.FieldComments),
				).Value(&field),
				huh.NewInput().Title("New value").Value(&value),
			),
		)
		if err := form.Run(); err != nil {
			return data, err
		}
		next, err := report.Apply(data, report.Edit{
			Kind: report.EditTicket, User: user, Index: index, Field: field, Value: report.Value(value),
		})
		if err != nil {
			pterm.Error.Println(err.Error())
			continue
		}
		data = next
		printReport(data)
	}
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
