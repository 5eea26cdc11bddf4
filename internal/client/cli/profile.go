package cli

import (
	"context"
	"fmt"

	"github.com/driftsync/driftsync/internal/client/models"
)

func (a *App) profile(ctx context.Context, args []string) {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	if len(args) > 0 && args[0] == "edit" {
		a.profileEdit(ctx)
		return
	}
	p := a.session.Profile()
	fmt.Fprintf(a.out, "handle:      %s\n", p.Handle)
	fmt.Fprintf(a.out, "name:        %s\n", p.Name)
	fmt.Fprintf(a.out, "location:    %s\n", p.Location)
	fmt.Fprintf(a.out, "description: %s\n", p.Description)
	fmt.Fprintf(a.out, "node:        %s\n", p.Node)
}

func (a *App) profileEdit(ctx context.Context) {
	name, err := GetSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	location, err := GetSimpleText(a.reader, "Enter location", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	description, err := GetSimpleText(a.reader, "Enter description", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	data := models.ProfileData{Name: name, Location: location, Description: description}
	if err := a.session.UpdateProfile(ctx, data); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
}

func (a *App) searchable(ctx context.Context, args []string) {
	if len(args) < 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(a.out, "Usage: searchable on|off")
		return
	}
	if err := a.session.SetSearchable(ctx, args[0] == "on"); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
}
