package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zimship/csrf"
	"zimship/prefs"
	"zimship/quote"
	"zimship/session"
	"zimship/validate"
)

type command struct {
	name, short, long string
	data              any
}

func commands(a *app) []command {
	return []command{
		{"login", "Sign in", "Sign in with email and password and keep the session in the profile.", &loginCmd{app: a}},
		{"logout", "Sign out", "Revoke the current session and forget it locally.", &logoutCmd{app: a}},
		{"whoami", "Show the signed-in user", "Show the signed-in user and whether they are an admin.", &whoamiCmd{app: a}},
		{"currency", "Show or select the display currency", "Without arguments lists the currencies; with a code selects it.", &currencyCmd{app: a}},
		{"theme", "Show or change the colour theme", "Accepts light, dark, system or toggle.", &themeCmd{app: a}},
		{"quote", "Price a shipment", "Prices items such as drum:2 or box:large:1 to a Zimbabwe city.", &quoteCmd{app: a}},
		{"track", "Track a shipment", "Look up a shipment by its ZIMSHIP tracking number.", &trackCmd{app: a}},
		{"shipments", "List your shipments", "List the shipments booked by the signed-in user.", &shipmentsCmd{app: a}},
		{"contact", "Send a support request", "Send a message to the support team. Run with --prepare to draw the form, then submit with the printed --token.", &contactCmd{app: a}},
		{"review", "Leave a review", "Submit a review for moderation.", &reviewCmd{app: a}},
	}
}

type loginCmd struct {
	app      *app
	Email    string `long:"email" required:"true" description:"Account email"`
	Password string `long:"password" env:"ZIMSHIP_PASSWORD" required:"true" description:"Account password"`
}

func (c *loginCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	_, user, err := c.app.client.SignIn(c.app.ctx, c.Email, c.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.app.out, "Signed in as %s\n", user.Email)
	return nil
}

type logoutCmd struct {
	app *app
}

func (c *logoutCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	if err := c.app.client.SignOut(c.app.ctx); err != nil {
		c.app.log.Warnf("Remote sign out: %v", err)
	}
	fmt.Fprintln(c.app.out, "Signed out")
	return nil
}

type whoamiCmd struct {
	app *app
}

func (c *whoamiCmd) Execute(_ []string) error {
	return c.app.protected(func(st session.State) error {
		fmt.Fprintf(c.app.out, "%s (%s)\n", st.User.Email, st.User.ID)
		if st.IsAdmin {
			fmt.Fprintln(c.app.out, "role: admin")
		}
		fmt.Fprintf(c.app.out, "session expires %s\n", st.Session.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	})
}

type currencyCmd struct {
	app  *app
	Args struct {
		Code string `positional-arg-name:"code"`
	} `positional-args:"yes"`
}

func (c *currencyCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	if c.Args.Code != "" {
		if err := c.app.currency.Set(strings.ToUpper(c.Args.Code)); err != nil {
			return err
		}
	}
	current := c.app.currency.Current()
	for _, cur := range prefs.Currencies {
		mark := " "
		if cur.Code == current.Code {
			mark = "*"
		}
		fmt.Fprintf(c.app.out, "%s %s %-3s %s\n", mark, cur.Symbol, cur.Code, cur.Name)
	}
	return nil
}

type themeCmd struct {
	app  *app
	Args struct {
		Mode string `positional-arg-name:"mode"`
	} `positional-args:"yes"`
}

func (c *themeCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	switch mode := strings.ToLower(c.Args.Mode); mode {
	case "":
	case "toggle":
		if _, err := c.app.theme.Toggle(); err != nil {
			return err
		}
	default:
		if err := c.app.theme.Set(prefs.Theme(mode)); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.app.out, "theme %s (%s)\n", c.app.theme.Current(), c.app.applied)
	return nil
}

type quoteCmd struct {
	app      *app
	City     string   `long:"city" required:"true" description:"Delivery city in Zimbabwe"`
	Items    []string `long:"item" required:"true" description:"kind[:size][:qty], repeatable"`
	Postcode string   `long:"postcode" description:"UK collection postcode"`
}

func parseItem(s string) (quote.Item, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	it := quote.Item{Kind: quote.ItemKind(strings.ToLower(parts[0])), Quantity: 1}
	rest := parts[1:]
	if n := len(rest); n > 0 {
		if q, err := strconv.Atoi(rest[n-1]); err == nil {
			it.Quantity = q
			rest = rest[:n-1]
		}
	}
	switch len(rest) {
	case 0:
	case 1:
		it.Size = rest[0]
	default:
		return quote.Item{}, fmt.Errorf("item %q: expected kind[:size][:qty]", s)
	}
	return it, nil
}

func (c *quoteCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	req := quote.Request{City: c.City, CollectionPostcode: c.Postcode}
	for _, s := range c.Items {
		it, err := parseItem(s)
		if err != nil {
			return err
		}
		req.Items = append(req.Items, it)
	}
	if err := validate.New().Struct(req); err != nil {
		return err
	}
	b, err := quote.Quote(req)
	if err != nil {
		return err
	}

	price := c.app.currency.FormatPrice
	for _, l := range b.Lines {
		name := string(l.Kind)
		if l.Size != "" {
			name += " (" + l.Size + ")"
		}
		fmt.Fprintf(c.app.out, "%3d x %-18s %10s\n", l.Quantity, name, price(l.TotalGBP))
	}
	if b.SurchargeGBP > 0 {
		fmt.Fprintf(c.app.out, "      %-18s %10s\n", "zone surcharge", price(b.SurchargeGBP))
	}
	fmt.Fprintf(c.app.out, "      %-18s %10s\n", "total to "+b.City.Name, price(b.TotalGBP))
	if b.Route != "" {
		fmt.Fprintf(c.app.out, "collection route: %s\n", b.Route)
	}
	return nil
}

type shipmentView struct {
	TrackingNumber string `json:"trackingNumber"`
	Status         string `json:"status"`
	Destination    string `json:"destination"`
	CreatedAt      string `json:"createdAt"`
}

type trackCmd struct {
	app  *app
	Args struct {
		TrackingNumber string `positional-arg-name:"tracking-number" required:"yes"`
	} `positional-args:"yes"`
}

func (c *trackCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	var s shipmentView
	path := "/api/shipments/" + url.PathEscape(strings.TrimSpace(c.Args.TrackingNumber))
	if err := c.app.client.Call(c.app.ctx, http.MethodGet, path, nil, &s); err != nil {
		return err
	}
	fmt.Fprintf(c.app.out, "%s  %s  %s\n", s.TrackingNumber, s.Status, s.Destination)
	return nil
}

type shipmentsCmd struct {
	app   *app
	Limit int `long:"limit" default:"20" description:"Maximum shipments to list"`
}

func (c *shipmentsCmd) Execute(_ []string) error {
	return c.app.protected(func(session.State) error {
		var out struct {
			Items []shipmentView `json:"items"`
		}
		path := "/api/shipments?limit=" + strconv.Itoa(c.Limit)
		if err := c.app.client.Call(c.app.ctx, http.MethodGet, path, nil, &out); err != nil {
			return err
		}
		if len(out.Items) == 0 {
			fmt.Fprintln(c.app.out, "No shipments yet")
		}
		for _, s := range out.Items {
			fmt.Fprintf(c.app.out, "%s  %-10s %-14s %s\n", s.TrackingNumber, s.Status, s.Destination, s.CreatedAt)
		}
		return nil
	})
}

var errNoFormToken = errors.New("contact: no form token, run `zimship contact --prepare` first")

type contactCmd struct {
	app     *app
	Prepare bool   `long:"prepare" description:"Issue a form token without sending anything"`
	Token   string `long:"token" description:"Form token printed by --prepare"`
	Email   string `long:"email" description:"Reply address"`
	Name    string `long:"name" description:"Your name"`
	Subject string `long:"subject" default:"website enquiry"`
	Message string `long:"message"`
}

// Execute mirrors the contact form in two steps. --prepare draws the form
// and stores a single-use token; a submit must present that token, which
// is cleared whether or not the send succeeds.
func (c *contactCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	tokens := csrf.NewLocalStore(c.app.store)
	if c.Prepare {
		token, err := tokens.Generate()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.out, "Form token: %s\n", token)
		return nil
	}

	if c.Token == "" {
		return errNoFormToken
	}
	if c.Email == "" || c.Message == "" {
		return errors.New("contact: --email and --message are required")
	}
	if err := tokens.Validate(c.Token); err != nil {
		return fmt.Errorf("contact: %w, run `zimship contact --prepare` again", err)
	}

	body := map[string]any{
		"template": "contact",
		"data": map[string]any{
			"name":    c.Name,
			"email":   c.Email,
			"subject": c.Subject,
			"message": c.Message,
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.app.client.Call(c.app.ctx, http.MethodPost, "/api/send-email", body, &out); err != nil {
		return err
	}
	fmt.Fprintln(c.app.out, "Message sent, we will reply by email")
	return nil
}

type reviewCmd struct {
	app     *app
	Name    string `long:"name" required:"true"`
	Rating  int    `long:"rating" required:"true" description:"1 to 5"`
	Comment string `long:"comment" required:"true"`
}

func (c *reviewCmd) Execute(_ []string) error {
	if err := c.app.open(); err != nil {
		return err
	}
	var tok struct {
		Token string `json:"token"`
	}
	if err := c.app.client.Call(c.app.ctx, http.MethodPost, "/api/csrf", nil, &tok); err != nil {
		return err
	}
	body := map[string]any{
		"authorName": c.Name,
		"rating":     c.Rating,
		"comment":    c.Comment,
		"csrfToken":  tok.Token,
	}
	if err := c.app.client.Call(c.app.ctx, http.MethodPost, "/api/reviews", body, nil); err != nil {
		return err
	}
	fmt.Fprintln(c.app.out, "Thanks, your review will appear once approved")
	return nil
}
