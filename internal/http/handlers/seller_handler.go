package handlers

import (
	"strconv"
	"strings"

	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/services"
	"bookfair/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type SellerHandler struct {
	Catalog *services.CatalogService
	Orders  *services.OrderService
}

// bookForm is what the add/edit form posts, kept as text so it can be
// shown back unchanged when validation fails.
type bookForm struct {
	ID     string
	Name   string
	Author string
	Price  string
	Stock  string
	Image  string
}

func readBookForm(c *fiber.Ctx) bookForm {
	return bookForm{
		ID:     c.Params("id"),
		Name:   c.FormValue("name"),
		Author: c.FormValue("author"),
		Price:  strings.TrimSpace(c.FormValue("price")),
		Stock:  strings.TrimSpace(c.FormValue("stock")),
		Image:  c.FormValue("image"),
	}
}

func formOf(b domain.Book) bookForm {
	img := b.Image
	if img == domain.PlaceholderImage {
		img = ""
	}
	return bookForm{
		ID:     b.ID,
		Name:   b.Name,
		Author: b.Author,
		Price:  b.Price.StringFixed(2),
		Stock:  strconv.Itoa(b.Stock),
		Image:  img,
	}
}

func (f bookForm) input() (services.BookInput, error) {
	fe := validate.FieldErrors{}
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		fe.Add("price", "Price must be a number")
	}
	stock, err := strconv.Atoi(f.Stock)
	if err != nil {
		fe.Add("stock", "Stock must be a whole number")
	}
	in := services.BookInput{Name: f.Name, Author: f.Author, Price: price, Stock: stock, Image: f.Image}
	return in, fe.Err()
}

func (h *SellerHandler) Dashboard(c *fiber.Ctx) error {
	u := currentUser(c)
	f, data := dashboardFilter(c)
	f.SellerID = u.ID
	books, err := h.Catalog.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	orders, err := h.Orders.ListForSeller(c.UserContext(), u.ID)
	if err != nil {
		return err
	}
	data["Books"] = books
	data["Orders"] = orders
	return render(c, "seller", data)
}

func (h *SellerHandler) NewBook(c *fiber.Ctx) error {
	return render(c, "book_form", fiber.Map{"Form": bookForm{Stock: "1"}})
}

func (h *SellerHandler) CreateBook(c *fiber.Ctx) error {
	form := readBookForm(c)
	in, err := form.input()
	if err == nil {
		var b domain.Book
		if b, err = h.Catalog.Create(c.UserContext(), currentUser(c), in); err == nil {
			applog.Audit(c, "book.create", map[string]any{"book_id": b.ID, "name": b.Name})
			return c.Redirect("/seller")
		}
	}
	return pageError(c, "book_form", "book.create", err, fiber.Map{"Form": form})
}

func (h *SellerHandler) EditBook(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Book not found")
	}
	b, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil || b.SellerID != currentUser(c).ID {
		return notFound(c, "Book not found")
	}
	return render(c, "book_form", fiber.Map{"Form": formOf(b)})
}

func (h *SellerHandler) UpdateBook(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Book not found")
	}
	form := readBookForm(c)
	in, err := form.input()
	if err == nil {
		if _, err = h.Catalog.Replace(c.UserContext(), currentUser(c), id, in); err == nil {
			applog.Audit(c, "book.update", map[string]any{"book_id": id})
			return c.Redirect("/seller")
		}
	}
	if err == domain.ErrNotOwner {
		applog.Security(c, "book.update.denied", map[string]any{"book_id": id})
	}
	return pageError(c, "book_form", "book.update", err, fiber.Map{"Form": form})
}

func (h *SellerHandler) DeleteBook(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Book not found")
	}
	if err := h.Catalog.Delete(c.UserContext(), currentUser(c), id); err != nil {
		if err == domain.ErrNotOwner || err == domain.ErrBookNotFound {
			applog.Security(c, "book.delete.denied", map[string]any{"book_id": id})
			return notFound(c, "Book not found")
		}
		return err
	}
	applog.Audit(c, "book.delete", map[string]any{"book_id": id})
	return c.Redirect("/seller")
}
