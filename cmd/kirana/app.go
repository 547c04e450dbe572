package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/auth"
	"github.com/kiranalabs/kirana-client/internal/cart"
	"github.com/kiranalabs/kirana-client/internal/catalog"
	"github.com/kiranalabs/kirana-client/internal/notifications"
	"github.com/kiranalabs/kirana-client/internal/orders"
	"github.com/kiranalabs/kirana-client/internal/session"
	"github.com/kiranalabs/kirana-client/internal/wishlist"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
	"github.com/shopspring/decimal"
)

const usage = `kirana — grocery storefront client

  login <email> <password>          signup <name> <email> <password> <phone>
  logout                            whoami
  cart                              cart add <productId> [qty]
  cart remove <itemId>              cart qty <itemId> <n>
  cart clear                        cart totals [deliveryFee]
  coupon validate <code>            coupon apply <code>
  coupon remove
  wishlist                          wishlist add <productId>
  wishlist remove <itemId>          wishlist clear
  stores                            store <storeId>
  products [category]               product <productId>
  search <query> [category]
  orders                            order <orderId>
  order-place <address> <payment>   order-cancel <orderId>
  order-track <orderId>
  notifications [limit]             notifications read <id>
  notifications read-all            notifications delete <id>
  health                            apistats`

type app struct {
	logg     *logger.Logger
	client   *api.Client
	sessions *session.Manager
	auth     *auth.Service
	cart     *cart.Service
	wishlist *wishlist.Service
	catalog  *catalog.Service
	orders   *orders.Service
	notifs   *notifications.Service
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Println(usage)
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "signup":
		return a.signup(ctx, rest)
	case "logout":
		return a.auth.Logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "cart":
		return a.cartCmd(ctx, rest)
	case "coupon":
		return a.couponCmd(ctx, rest)
	case "wishlist":
		return a.wishlistCmd(ctx, rest)
	case "stores":
		return a.stores(ctx)
	case "store":
		return a.store(ctx, rest)
	case "products":
		return a.products(ctx, rest)
	case "product":
		return a.product(ctx, rest)
	case "search":
		return a.search(ctx, rest)
	case "orders":
		return a.listOrders(ctx)
	case "order":
		return a.getOrder(ctx, rest)
	case "order-place":
		return a.placeOrder(ctx, rest)
	case "order-cancel":
		return a.cancelOrder(ctx, rest)
	case "order-track":
		return a.trackOrder(ctx, rest)
	case "notifications":
		return a.notificationsCmd(ctx, rest)
	case "health":
		return a.client.Health(ctx)
	case "apistats":
		return a.apistats()
	default:
		fmt.Println(usage)
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown command %q", cmd))
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: login <email> <password>")
	}
	sess, err := a.auth.Login(ctx, auth.Credentials{Email: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", sess.User.Name, sess.User.Email)
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: signup <name> <email> <password> <phone>")
	}
	sess, err := a.auth.SignUp(ctx, auth.SignUpInput{
		Name: args[0], Email: args[1], Password: args[2], Phone: args[3],
	})
	if err != nil {
		return err
	}
	fmt.Printf("account created for %s\n", sess.User.Email)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	sess := a.sessions.Current(ctx)
	if sess == nil {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("%s <%s> role=%s id=%s\n", sess.User.Name, sess.User.Email, sess.Role, sess.UserID())
	if exp, ok := sess.TokenExpiry(); ok {
		fmt.Printf("token expires %s\n", exp.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func (a *app) cartCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if err := a.cart.Sync(ctx); err != nil {
			return err
		}
		return a.printCart()
	}
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: cart add <productId> [qty]")
		}
		qty := 1
		if len(args) > 2 {
			parsed, err := strconv.Atoi(args[2])
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a number")
			}
			qty = parsed
		}
		product, err := a.catalog.Product(ctx, args[1])
		if err != nil {
			return err
		}
		if err := a.cart.Add(ctx, cart.ItemFromProduct(*product, qty)); err != nil {
			return err
		}
		return a.printCart()
	case "remove":
		if len(args) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: cart remove <itemId>")
		}
		if err := a.cart.Remove(ctx, args[1]); err != nil {
			return err
		}
		return a.printCart()
	case "qty":
		if len(args) != 3 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: cart qty <itemId> <n>")
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a number")
		}
		if err := a.cart.UpdateQuantity(ctx, args[1], qty); err != nil {
			return err
		}
		return a.printCart()
	case "clear":
		if err := a.cart.Clear(ctx); err != nil {
			return err
		}
		return a.printCart()
	case "totals":
		fee := decimal.Zero
		if len(args) > 1 {
			parsed, err := decimal.NewFromString(args[1])
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must be a number")
			}
			fee = parsed
		}
		totals := a.cart.Totals(fee)
		fmt.Printf("subtotal %s  delivery %s  discount %s  total %s\n",
			totals.Subtotal, totals.DeliveryFee, totals.Discount, totals.Total)
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown cart command %q", args[0]))
	}
}

func (a *app) couponCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: coupon validate|apply|remove")
	}
	switch args[0] {
	case "validate":
		if len(args) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: coupon validate <code>")
		}
		decision, err := a.cart.ValidateCoupon(ctx, args[1])
		if err != nil {
			return err
		}
		printCouponDecision(decision)
		return nil
	case "apply":
		if len(args) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: coupon apply <code>")
		}
		decision, err := a.cart.ApplyCoupon(ctx, args[1])
		if err != nil {
			return err
		}
		printCouponDecision(decision)
		return nil
	case "remove":
		return a.cart.RemoveCoupon(ctx)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown coupon command %q", args[0]))
	}
}

func printCouponDecision(decision *api.CouponDecision) {
	if decision.Valid && decision.Coupon != nil {
		fmt.Printf("coupon %s: %.0f%% off, saves %.2f\n",
			decision.Coupon.Code, decision.Coupon.DiscountPercentage, decision.Coupon.DiscountAmount)
		return
	}
	msg := decision.Message
	if msg == "" {
		msg = "invalid coupon"
	}
	fmt.Println(msg)
}

func (a *app) printCart() error {
	state := a.cart.State()
	if len(state.Items) == 0 {
		fmt.Println("cart is empty")
		return nil
	}
	for _, item := range state.Items {
		fmt.Printf("%-24s x%-3d %8.2f  %s (%s)\n", item.Name, item.Quantity, item.Price, item.StoreName, item.ItemID)
	}
	fmt.Printf("total: %s\n", state.Total)
	if state.AppliedCoupon != nil {
		fmt.Printf("coupon: %s (-%.2f)\n", state.AppliedCoupon.Code, state.AppliedCoupon.DiscountAmount)
	}
	return nil
}

func (a *app) wishlistCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if err := a.wishlist.Sync(ctx); err != nil {
			return err
		}
		return a.printWishlist()
	}
	switch args[0] {
	case "add":
		if len(args) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: wishlist add <productId>")
		}
		product, err := a.catalog.Product(ctx, args[1])
		if err != nil {
			return err
		}
		if err := a.wishlist.Add(ctx, wishlist.ItemFromProduct(*product)); err != nil {
			return err
		}
		return a.printWishlist()
	case "remove":
		if len(args) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: wishlist remove <itemId>")
		}
		if err := a.wishlist.Remove(ctx, args[1]); err != nil {
			return err
		}
		return a.printWishlist()
	case "clear":
		if err := a.wishlist.Clear(ctx); err != nil {
			return err
		}
		return a.printWishlist()
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown wishlist command %q", args[0]))
	}
}

func (a *app) printWishlist() error {
	state := a.wishlist.State()
	if len(state.Items) == 0 {
		fmt.Println("wishlist is empty")
		return nil
	}
	for storeID, items := range a.wishlist.ItemsByStore() {
		fmt.Printf("%s:\n", storeID)
		for _, item := range items {
			fmt.Printf("  %-24s %8.2f  (%s)\n", item.Name, item.Price, item.ItemID)
		}
	}
	return nil
}

func (a *app) stores(ctx context.Context) error {
	stores, err := a.catalog.Stores(ctx, api.StoreListParams{})
	if err != nil {
		return err
	}
	for _, s := range stores {
		fmt.Printf("%-24s %.1f  %s (%s)\n", s.Name, s.Rating, s.StoreAddress, s.ID)
	}
	return nil
}

func (a *app) store(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: store <storeId>")
	}
	s, err := a.catalog.Store(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s — %s\n", s.Name, s.StoreAddress)
	for _, p := range s.Inventory {
		fmt.Printf("  %-24s %8.2f/%s  (%s)\n", p.Name, p.Price, p.Unit, p.ID)
	}
	return nil
}

func (a *app) products(ctx context.Context, args []string) error {
	params := api.ProductListParams{}
	if len(args) > 0 {
		params.Category = args[0]
	}
	products, err := a.catalog.Products(ctx, params)
	if err != nil {
		return err
	}
	printProducts(products)
	return nil
}

func (a *app) product(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: product <productId>")
	}
	p, err := a.catalog.Product(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s — %.2f/%s [%s] %s\n", p.Name, p.Price, p.Unit, p.Category, p.StoreName)
	if p.Description != "" {
		fmt.Println(p.Description)
	}
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: search <query> [category]")
	}
	category := ""
	if len(args) > 1 {
		category = args[1]
	}
	products, err := a.catalog.Search(ctx, args[0], category)
	if err != nil {
		return err
	}
	printProducts(products)
	return nil
}

func printProducts(products []api.Product) {
	if len(products) == 0 {
		fmt.Println("no products found")
		return
	}
	for _, p := range products {
		fmt.Printf("%-24s %8.2f/%-6s %-12s %s (%s)\n", p.Name, p.Price, p.Unit, p.Category, p.StoreName, p.ID)
	}
}

func (a *app) listOrders(ctx context.Context) error {
	list, err := a.orders.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no orders yet")
		return nil
	}
	for _, o := range list {
		fmt.Printf("%s  %-12s %8.2f  %s\n", o.ID, o.Status, o.Total, o.CreatedAt)
	}
	return nil
}

func (a *app) getOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: order <orderId>")
	}
	o, err := a.orders.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("order %s  %s  total %.2f\n", o.ID, o.Status, o.Total)
	for _, item := range o.Items {
		fmt.Printf("  %-24s x%-3d %8.2f\n", item.Name, item.Quantity, item.Price)
	}
	return nil
}

func (a *app) placeOrder(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: order-place <address> <payment>")
	}
	state := a.cart.State()
	items := make([]api.CartItem, 0, len(state.Items))
	for _, item := range state.Items {
		items = append(items, api.CartItem{
			ItemID: item.ItemID, Name: item.Name, Price: item.Price, Quantity: item.Quantity,
			Unit: item.Unit, Image: item.Image, StoreID: item.StoreID,
			StoreName: item.StoreName, Category: item.Category,
		})
	}
	req := api.CreateOrderRequest{Items: items, DeliveryAddress: args[0], PaymentMethod: args[1]}
	if state.AppliedCoupon != nil {
		req.CouponCode = state.AppliedCoupon.Code
	}
	o, err := a.orders.Place(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("order placed: %s (total %.2f)\n", o.ID, o.Total)
	// The backend empties the cart on order placement; pick that up.
	return a.cart.Sync(ctx)
}

func (a *app) cancelOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: order-cancel <orderId>")
	}
	o, err := a.orders.Cancel(ctx, args[0])
	if err != nil {
		return err
	}
	if o != nil {
		fmt.Printf("order %s is now %s\n", o.ID, o.Status)
	}
	return nil
}

func (a *app) trackOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage: order-track <orderId>")
	}
	track, err := a.orders.Track(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("status: %s\n", track.Status)
	for _, u := range track.Updates {
		fmt.Printf("  %s  %s  %s\n", u.At, u.Status, u.Note)
	}
	return nil
}

func (a *app) notificationsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 || isNumeric(args[0]) {
		limit := 0
		if len(args) > 0 {
			limit, _ = strconv.Atoi(args[0])
		}
		feed, err := a.notifs.List(ctx, limit)
		if err != nil {
			return err
		}
		if len(feed) == 0 {
			fmt.Println("no notifications")
			return nil
		}
		for _, n := range feed {
			marker := " "
			if !n.Read {
				marker = "*"
			}
			fmt.Printf("%s %s  %s — %s\n", marker, n.ID, n.Title, n.Message)
		}
		return nil
	}
	switch args[0] {
	case "read":
		if len(args) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: notifications read <id>")
		}
		return a.notifs.MarkRead(ctx, args[1])
	case "read-all":
		return a.notifs.MarkAllRead(ctx)
	case "delete":
		if len(args) != 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "usage: notifications delete <id>")
		}
		return a.notifs.Delete(ctx, args[1])
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown notifications command %q", args[0]))
	}
}

func (a *app) apistats() error {
	summary, err := a.client.Monitor().Summary()
	if err != nil {
		return err
	}
	fmt.Print(summary)
	for _, entry := range a.client.Monitor().Log() {
		fmt.Printf("  [%s] %s %s -> %d\n", entry.At.Format("15:04:05"), entry.Method, entry.Path, entry.Status)
	}
	return nil
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func friendlyMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err.Error()
	}
	msg := typed.Message()
	if msg == "" {
		msg = pkgerrors.MetadataFor(typed.Code()).PublicMessage
	}
	if details, ok := typed.Details().(map[string]string); ok {
		parts := make([]string, 0, len(details))
		for field, reason := range details {
			parts = append(parts, field+" "+reason)
		}
		if len(parts) > 0 {
			msg = msg + ": " + strings.Join(parts, "; ")
		}
	}
	return msg
}
