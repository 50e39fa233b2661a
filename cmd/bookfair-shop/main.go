// Command bookfair-shop is the terminal client for a bookfair server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookfair/internal/client"
	"bookfair/internal/config"
	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/services"
	"bookfair/internal/session"
	"bookfair/internal/validate"
)

type shop struct {
	out   io.Writer
	api   *client.Client
	store *session.Store
	cart  *client.CartManager
}

type runFunc func(ctx context.Context, s *shop, args []string) error

// usages is kept apart from commands so the command funcs can quote it.
var usages = map[string]string{
	"register": "register -name N -email E -password P [-role buyer|seller -shop S -address A]",
	"login":    "login EMAIL PASSWORD",
	"logout":   "logout",
	"whoami":   "whoami",
	"books":    "books [-q TEXT] [-min P] [-max P] [-seller ID]",
	"add":      "add BOOK_ID",
	"rm":       "rm BOOK_ID",
	"qty":      "qty BOOK_ID N",
	"cart":     "cart",
	"clear":    "clear",
	"checkout": "checkout -name N -address A -phone 0123456789",
	"orders":   "orders",
	"sell":     "sell -name N -author A -price P -stock N [-image URL]",
	"restock":  "restock BOOK_ID STOCK",
	"unlist":   "unlist BOOK_ID",
}

var commands = map[string]runFunc{
	"register": register,
	"login":    login,
	"logout":   logout,
	"whoami":   whoami,
	"books":    books,
	"add":      add,
	"rm":       rm,
	"qty":      qty,
	"cart":     showCart,
	"clear":    clearCart,
	"checkout": checkout,
	"orders":   orders,
	"sell":     sell,
	"restock":  restock,
	"unlist":   unlist,
}

var errUnknownCommand = errors.New("unknown command")

func usage(w io.Writer) {
	names := make([]string, 0, len(usages))
	for n := range usages {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: bookfair-shop COMMAND [ARGS]")
	for _, n := range names {
		fmt.Fprintln(w, "  "+usages[n])
	}
}

func usageErr(name string) error {
	return errors.New("usage: " + usages[name])
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	if _, ok := commands[os.Args[1]]; !ok {
		usage(os.Stderr)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func run(name string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.LogFile != "" {
		if err := applog.Init(cfg.AppEnv, cfg.LogFile); err == nil {
			defer applog.Sync()
		}
	}

	store, err := session.Open(cfg.SessionPath)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return dispatch(ctx, newShop(ctx, os.Stdout, cfg.BaseURL, store), name, args)
}

// newShop builds a client carrying the stored token, if any.
func newShop(ctx context.Context, out io.Writer, baseURL string, store *session.Store) *shop {
	api := client.New(baseURL)
	if sess, err := store.Load(ctx); err == nil {
		api.Token = sess.Token
	}
	return &shop{out: out, api: api, store: store, cart: client.NewCartManager(api, store)}
}

func dispatch(ctx context.Context, s *shop, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
	err := cmd(ctx, s, args)
	if errors.Is(err, domain.ErrUnauthorized) {
		// the token expired or was revoked
		_ = s.store.Clear(ctx)
	}
	return err
}

// describe turns field errors into one line per field.
func describe(err error) string {
	var fe validate.FieldErrors
	if errors.As(err, &fe) {
		msg := "please fix:"
		keys := make([]string, 0, len(fe))
		for k := range fe {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg += "\n  " + k + ": " + fe[k]
		}
		return msg
	}
	return err.Error()
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

func money(d decimal.Decimal) string { return "₹" + d.StringFixed(2) }

func (s *shop) remember(ctx context.Context, sess client.Session) error {
	return s.store.Save(ctx, &session.Session{User: sess.User, Token: sess.Token, ShopName: sess.User.ShopName})
}

func register(ctx context.Context, s *shop, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var in services.Registration
	fs.StringVar(&in.Name, "name", "", "your name")
	fs.StringVar(&in.Email, "email", "", "email address")
	fs.StringVar(&in.Password, "password", "", "password, 6 to 72 characters")
	fs.StringVar(&in.Role, "role", "buyer", "buyer or seller")
	fs.StringVar(&in.ShopName, "shop", "", "shop name (sellers)")
	fs.StringVar(&in.Address, "address", "", "address (sellers)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := s.api.Register(ctx, in)
	if err != nil {
		return err
	}
	if err := s.remember(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "welcome, %s (%s)\n", sess.User.Name, sess.User.Role)
	return nil
}

func login(ctx context.Context, s *shop, args []string) error {
	if len(args) != 2 {
		return usageErr("login")
	}
	sess, err := s.api.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if err := s.remember(ctx, sess); err != nil {
		return err
	}
	if sess.User.Role == domain.RoleBuyer {
		if _, err := s.cart.Load(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(s.out, "signed in as %s (%s)\n", sess.User.Name, sess.User.Role)
	return nil
}

func logout(ctx context.Context, s *shop, _ []string) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "signed out")
	return nil
}

func whoami(ctx context.Context, s *shop, _ []string) error {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	u := sess.User
	fmt.Fprintf(s.out, "%s <%s> %s\n", u.Name, u.Email, u.Role)
	if u.IsSeller() {
		fmt.Fprintf(s.out, "shop: %s\naddress: %s\n", sess.ShopName, u.Address)
	}
	return nil
}

func books(ctx context.Context, s *shop, args []string) error {
	fs := flag.NewFlagSet("books", flag.ContinueOnError)
	var q client.BookQuery
	fs.StringVar(&q.Q, "q", "", "name contains")
	fs.StringVar(&q.Min, "min", "", "minimum price")
	fs.StringVar(&q.Max, "max", "", "maximum price")
	fs.StringVar(&q.Seller, "seller", "", "seller id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := s.api.Books(ctx, q)
	if err != nil {
		return err
	}
	table(s.out, "ID\tNAME\tAUTHOR\tPRICE\tSTOCK", func(tw *tabwriter.Writer) {
		for _, b := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", b.ID, b.Name, b.Author, money(b.Price), b.Stock)
		}
	})
	return nil
}

// buyer loads the server cart behind a buyer-only gate.
func (s *shop) buyer(ctx context.Context) error {
	if _, err := s.store.Require(ctx, domain.RoleBuyer); err != nil {
		return err
	}
	_, err := s.cart.Load(ctx)
	return err
}

func printCart(w io.Writer, cart domain.Cart) {
	if cart.Empty() {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	table(w, "ID\tNAME\tPRICE\tQTY\tSUBTOTAL", func(tw *tabwriter.Writer) {
		for _, l := range cart.Lines {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", l.BookID, l.Name, money(l.Price), l.Quantity, money(l.Subtotal()))
		}
		fmt.Fprintf(tw, "\t\t\tTOTAL\t%s\n", money(cart.TotalPrice()))
	})
}

func add(ctx context.Context, s *shop, args []string) error {
	if len(args) != 1 {
		return usageErr("add")
	}
	if err := s.buyer(ctx); err != nil {
		return err
	}
	b, err := s.api.Book(ctx, args[0])
	if err != nil {
		return err
	}
	cart, err := s.cart.Add(ctx, b)
	if err != nil {
		return err
	}
	printCart(s.out, cart)
	return nil
}

func rm(ctx context.Context, s *shop, args []string) error {
	if len(args) != 1 {
		return usageErr("rm")
	}
	if err := s.buyer(ctx); err != nil {
		return err
	}
	cart, err := s.cart.Remove(ctx, args[0])
	if err != nil {
		return err
	}
	printCart(s.out, cart)
	return nil
}

func qty(ctx context.Context, s *shop, args []string) error {
	if len(args) != 2 {
		return usageErr("qty")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return domain.ErrInvalidQuantity
	}
	if err := s.buyer(ctx); err != nil {
		return err
	}
	cart, err := s.cart.SetQuantity(ctx, args[0], n)
	if err != nil {
		return err
	}
	printCart(s.out, cart)
	return nil
}

func showCart(ctx context.Context, s *shop, _ []string) error {
	if err := s.buyer(ctx); err != nil {
		return err
	}
	printCart(s.out, s.cart.Cart())
	return nil
}

func clearCart(ctx context.Context, s *shop, _ []string) error {
	if err := s.buyer(ctx); err != nil {
		return err
	}
	cart, err := s.cart.Clear(ctx)
	if err != nil {
		return err
	}
	printCart(s.out, cart)
	return nil
}

func checkout(ctx context.Context, s *shop, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	var c domain.Contact
	fs.StringVar(&c.Name, "name", "", "recipient name")
	fs.StringVar(&c.Address, "address", "", "delivery address")
	fs.StringVar(&c.Phone, "phone", "", "10 digit phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := s.buyer(ctx); err != nil {
		return err
	}
	p, err := s.cart.PlaceOrder(ctx, c)
	if err != nil {
		return err
	}
	if err := s.store.AppendOrder(ctx, p.Order); err != nil {
		applog.L().Warn("orders.persist.fail", zap.Error(err))
	}
	fmt.Fprintf(s.out, "order %s placed, total %s\n", p.Order.ID, money(p.Order.TotalPrice))
	return nil
}

func orders(ctx context.Context, s *shop, _ []string) error {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	list, err := s.api.Orders(ctx)
	if err != nil {
		return err
	}
	table(s.out, "ORDER\tPLACED\tITEMS\tTOTAL", func(tw *tabwriter.Writer) {
		for _, o := range list {
			items, total := len(o.Items), o.TotalPrice
			if sess.User.IsSeller() {
				// a seller only sees their share
				items, total = 0, decimal.Zero
				for _, it := range o.Items {
					if it.SellerID == sess.User.ID {
						items++
						total = total.Add(it.Subtotal())
					}
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.ID, o.CreatedAt, items, money(total))
		}
	})
	return nil
}

func sell(ctx context.Context, s *shop, args []string) error {
	fs := flag.NewFlagSet("sell", flag.ContinueOnError)
	var in services.BookInput
	var price string
	fs.StringVar(&in.Name, "name", "", "title")
	fs.StringVar(&in.Author, "author", "", "author")
	fs.StringVar(&price, "price", "", "price")
	fs.IntVar(&in.Stock, "stock", 1, "copies in stock")
	fs.StringVar(&in.Image, "image", "", "cover image URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := s.store.Require(ctx, domain.RoleSeller); err != nil {
		return err
	}
	d, ok := validate.Price(price)
	if !ok {
		return validate.FieldErrors{"price": "Price must be a non-negative number"}
	}
	in.Price = d
	b, err := s.api.CreateBook(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "listed %s (%s) at %s\n", b.Name, b.ID, money(b.Price))
	return nil
}

func restock(ctx context.Context, s *shop, args []string) error {
	if len(args) != 2 {
		return usageErr("restock")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return validate.FieldErrors{"stock": "Stock must be a whole number"}
	}
	if _, err := s.store.Require(ctx, domain.RoleSeller); err != nil {
		return err
	}
	b, err := s.api.PatchBook(ctx, args[0], services.BookPatch{Stock: &n})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s now has %d in stock\n", b.Name, b.Stock)
	return nil
}

func unlist(ctx context.Context, s *shop, args []string) error {
	if len(args) != 1 {
		return usageErr("unlist")
	}
	if _, err := s.store.Require(ctx, domain.RoleSeller); err != nil {
		return err
	}
	if err := s.api.DeleteBook(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "unlisted %s\n", args[0])
	return nil
}
