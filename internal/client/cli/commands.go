package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/services"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

var errUsage = errors.New("wrong arguments, see 'help'")

// shortID trims uuids for the prompt.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *App) Status(ctx context.Context) error {
	pending, err := a.catalog.PendingCount(ctx)
	if err != nil {
		return err
	}
	conflicts, err := a.catalog.Conflicts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "mode:        %s\n", a.mode())
	fmt.Fprintf(a.out, "syncing:     %t\n", a.sync.InProgress())
	fmt.Fprintf(a.out, "pending:     %d\n", pending)
	fmt.Fprintf(a.out, "conflicts:   %d\n", len(conflicts))
	fmt.Fprintf(a.out, "tasks:       %d running, %d failed\n", a.queue.Pending(), len(a.queue.Failed()))
	if a.config.CompanyID != "" {
		fmt.Fprintf(a.out, "company:     %s\n", a.config.CompanyID)
	}
	return nil
}

// Sync probes the remote first when the client believes it is offline, so a
// user can retry right after the network comes back.
func (a *App) Sync(ctx context.Context) error {
	if !a.monitor.Status() && !a.monitor.Probe(ctx) {
		return fmt.Errorf("cannot sync: %w", common.ErrUnavailable)
	}
	if err := a.sync.PerformSync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sync complete")
	return nil
}

func (a *App) Reset(ctx context.Context) error {
	if err := a.sync.FullResetSync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Cache rebuilt from the remote store")
	return nil
}

func (a *App) Bootstrap(ctx context.Context) error {
	if a.config.CompanyID == "" {
		return errors.New("no company configured, start with -company")
	}
	if err := a.sync.Bootstrap(ctx, a.config.CompanyID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Active sales downloaded, the rest continues in the background")
	return nil
}

func (a *App) Sales(ctx context.Context) error {
	sales, err := a.catalog.Sales(ctx, a.config.CompanyID)
	if err != nil {
		return err
	}
	if len(sales) == 0 {
		fmt.Fprintln(a.out, "No sales")
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tLOCATION")
	for _, s := range sales {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Status, s.Location)
	}
	return w.Flush()
}

func (a *App) Use(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	sales, err := a.catalog.Sales(ctx, "")
	if err != nil {
		return err
	}
	for _, s := range sales {
		if s.ID == args[0] {
			a.sale = s.ID
			fmt.Fprintf(a.out, "Using sale %q\n", s.Name)
			return nil
		}
	}
	return fmt.Errorf("sale %s: %w", args[0], common.ErrNotFound)
}

func (a *App) saleArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.sale == "" {
		return "", errors.New("no sale selected, run 'use <sale-id>' first")
	}
	return a.sale, nil
}

func lotNumber(n int64) string {
	if models.IsTemporaryLotNumber(n) {
		return fmt.Sprintf("tmp%d", -n)
	}
	return strconv.FormatInt(n, 10)
}

func (a *App) Lots(ctx context.Context, args []string) error {
	saleID, err := a.saleArg(args)
	if err != nil {
		return err
	}
	lots, err := a.catalog.Lots(ctx, saleID)
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		fmt.Fprintln(a.out, "No lots")
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "NO\tID\tTITLE")
	for _, l := range lots {
		fmt.Fprintf(w, "%s\t%s\t%s\n", lotNumber(l.LotNumber), l.ID, l.Title)
	}
	return w.Flush()
}

// AddLot takes the title from args or prompts for it, then asks for an
// optional description.
func (a *App) AddLot(ctx context.Context, args []string) error {
	if a.sale == "" {
		return errors.New("no sale selected, run 'use <sale-id>' first")
	}

	prompts := a.out
	if !interactive() {
		prompts = io.Discard
	}

	title := strings.Join(args, " ")
	if title == "" {
		t, err := GetSimpleText(a.reader, "Title", prompts)
		if err != nil {
			return err
		}
		title = t
	}
	if title == "" {
		return fmt.Errorf("%w: empty title", common.ErrInvalidRecord)
	}
	description, err := GetMultiline(a.reader, "Description", prompts)
	if err != nil {
		return err
	}

	lot := &models.Lot{SaleID: a.sale, Title: title, Description: description}
	if err := a.catalog.CreateLot(ctx, lot); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Lot %s added as number %s\n", lot.ID, lotNumber(lot.LotNumber))
	return nil
}

func (a *App) Photos(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	photos, err := a.catalog.Photos(ctx, args[0])
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		fmt.Fprintln(a.out, "No photos")
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "ID\tFILE\tPRIMARY\tUPLOADED\tLOCAL")
	for _, p := range photos {
		local := "no"
		h, err := a.photos.DisplayHandle(ctx, p.ID)
		if err != nil {
			return err
		}
		if h != nil {
			local = fmt.Sprintf("%d bytes", len(h.Bytes()))
			h.Release()
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", p.ID, p.FileName, p.IsPrimary, p.Synced, local)
	}
	return w.Flush()
}

// AddPhoto reads an image file and stores it for a lot: addphoto <lot> <file> [primary].
func (a *App) AddPhoto(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 || (len(args) == 3 && args[2] != "primary") {
		return errUsage
	}
	data, err := readFile(args[1])
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	p, err := a.photos.SaveFast(ctx, services.SavePhotoInput{
		LotID:     args[0],
		FileName:  filepath.Base(args[1]),
		Data:      data,
		IsPrimary: len(args) == 3,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Photo %s saved\n", p.ID)
	return nil
}

func (a *App) Primary(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := a.photos.SetPrimary(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Primary photo updated")
	return nil
}

func (a *App) Pending(ctx context.Context) error {
	n, err := a.catalog.PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d change(s) waiting to be pushed\n", n)
	return nil
}

func (a *App) Tasks(ctx context.Context) error {
	fmt.Fprintf(a.out, "%d task(s) running\n", a.queue.Pending())
	for _, f := range a.queue.Failed() {
		fmt.Fprintf(a.out, "%s  %s: %v\n", f.At.Format("15:04:05"), f.Name, f.Err)
	}
	return nil
}

func (a *App) Conflicts(ctx context.Context) error {
	list, err := a.catalog.Conflicts(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No conflicts")
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "ID\tTABLE\tRECORD\tDETECTED")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Table, c.RecordID, c.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func (a *App) Resolve(ctx context.Context, args []string) error {
	if len(args) != 2 || (args[1] != "local" && args[1] != "cloud") {
		return errUsage
	}
	if err := a.catalog.ResolveConflict(ctx, args[0], args[1] == "local"); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Conflict resolved")
	return nil
}
