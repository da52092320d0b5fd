package console

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

// render mounts the screen for path and returns its unmount function, if
// the screen holds resources. The screens themselves are deliberately
// thin: fetch through the typed client, print a table. All the
// interesting behavior happened before we got here, in the guard and the
// transport.
func (s *Shell) render(ctx context.Context, path string) (unmount func(), err error) {
	switch {
	case path == "/login":
		fmt.Fprintln(s.out, "[login] login <email> <password>")
		return nil, nil
	case path == "/2fa/verify":
		fmt.Fprintln(s.out, "[2fa] verify <code>")
		return nil, nil
	case path == "/photos":
		return nil, s.renderPhotos(ctx)
	case path == "/orders":
		return nil, s.renderOrders(ctx)
	case path == "/shares":
		return nil, s.renderShares(ctx)
	case path == "/locations":
		return nil, s.renderLocations(ctx)
	case path == "/customers":
		return nil, s.renderCustomers(ctx)
	case path == "/users":
		return nil, s.renderUsers(ctx)
	case path == "/exports":
		return s.renderExports(ctx)
	case strings.HasPrefix(path, "/public/"):
		return nil, s.renderPublicShare(ctx, strings.TrimPrefix(path, "/public/"))
	default:
		fmt.Fprintf(s.out, "[%s] nothing to show\n", path)
		return nil, nil
	}
}

func (s *Shell) renderPhotos(ctx context.Context) error {
	photos, err := s.client.ListPhotos(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tTAKEN")
	for _, p := range photos {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Filename, p.TakenAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func (s *Shell) renderOrders(ctx context.Context) error {
	orders, err := s.client.ListOrders(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tSTATUS")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", o.ID, o.CustomerID, o.Status)
	}
	return tw.Flush()
}

func (s *Shell) renderShares(ctx context.Context) error {
	shares, err := s.client.ListShares(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTOKEN\tPHOTOS\tREVOKED")
	for _, sh := range shares {
		revoked := ""
		if sh.RevokedAt != nil {
			revoked = sh.RevokedAt.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", sh.ID, sh.Token, len(sh.PhotoIDs), revoked)
	}
	return tw.Flush()
}

func (s *Shell) renderLocations(ctx context.Context) error {
	locations, err := s.client.ListLocations(ctx)
	if err != nil {
		return err
	}
	for _, l := range locations {
		fmt.Fprintf(s.out, "%d  %s\n", l.ID, l.Name)
	}
	return nil
}

func (s *Shell) renderCustomers(ctx context.Context) error {
	customers, err := s.client.ListCustomers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
	for _, c := range customers {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.Email)
	}
	return tw.Flush()
}

func (s *Shell) renderUsers(ctx context.Context) error {
	users, err := s.client.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Email, u.Role)
	}
	return tw.Flush()
}

func (s *Shell) renderPublicShare(ctx context.Context, token string) error {
	share, err := s.client.PublicShare(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "share %s: %d photos\n", share.Token, len(share.Photos))
	return nil
}
