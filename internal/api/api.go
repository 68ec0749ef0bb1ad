package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"sentimetrics/internal/csvx"
	"sentimetrics/internal/datefmt"
	"sentimetrics/internal/models"
	"sentimetrics/internal/session"
	"sentimetrics/internal/storage"
	"sentimetrics/internal/store"
	"sentimetrics/internal/table"
	"sentimetrics/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CookieMaxAge is how long the auth cookie lives, in seconds.
const CookieMaxAge = 3600

const authCookie = "token"

type API struct {
	session *session.Session
	client  *upstream.Client
	store   *store.Store
	exports storage.Provider

	itemsMu   sync.Mutex
	itemsSort table.Sort
	itemsSlot upstream.Slot[[]models.Product]

	reviewsMu   sync.Mutex
	reviewsSort table.Sort
	reviewsSlot upstream.Slot[[]models.Review]
}

func New(sess *session.Session, client *upstream.Client, st *store.Store, exports storage.Provider) *API {
	return &API{
		session:     sess,
		client:      client,
		store:       st,
		exports:     exports,
		itemsSort:   table.Sort{Key: "updatedAt", Dir: table.Desc},
		reviewsSort: table.Sort{Key: "createdAt", Dir: table.None},
	}
}

// requestToken pulls the bearer token from the Authorization header or
// the auth cookie.
func requestToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie(authCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware requires a token matching the live session. The
// redirect field tells API consumers where to send the user.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			respondJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    "Unauthorized",
				"redirect": "/login",
			})
			return
		}
		if token != a.session.Token() {
			respondJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    "Invalid session",
				"redirect": "/login",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SuperadminMiddleware requires the superadmin role.
func (a *API) SuperadminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := a.session.Snapshot()
		if !snap.Authenticated || snap.User.Role != models.RoleSuperadmin {
			respondError(w, http.StatusForbidden, "Superadmin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/login", a.login)
	r.Post("/auth/logout", a.logout)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)

		r.Get("/auth/me", a.getMe)

		r.Route("/brands", func(r chi.Router) {
			r.Get("/", a.listBrands)
			r.Post("/select", a.selectBrand)
			r.Get("/active", a.activeBrand)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", a.listItems)
			r.Get("/export.csv", a.exportItems)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", a.listReviews)
			r.Get("/export.csv", a.exportReviews)
		})

		r.Get("/outlets", a.listOutlets)
		r.Get("/channels", a.listChannels)
		r.Get("/dashboard", a.dashboard)
		r.Get("/dashboard/summary", a.dashboardSummary)
		r.Get("/exports", a.listExports)

		// Superadmin routes
		r.Group(func(r chi.Router) {
			r.Use(a.SuperadminMiddleware)
			r.Get("/companies", a.listCompanies)
			r.Post("/companies", a.createCompany)
			r.Get("/companies/{id}/brands", a.listCompanyBrands)
			r.Post("/companies/{id}/brands", a.createCompanyBrand)
			r.Post("/users", a.createUser)
		})
	})

	return r
}

// Auth handlers

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	res, err := a.client.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	a.session.SeedLogin(res.Token, res.User, res.Brands, "")

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusOK, a.session.Snapshot())
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	a.session.Logout()

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) getMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.session.Snapshot())
}

// Brand handlers

func (a *API) listBrands(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		if err := a.session.RefreshBrands(r.Context()); err != nil {
			respondUpstreamError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, a.session.Brands())
}

func (a *API) selectBrand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BrandID string `json:"brandId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	brand, err := a.session.SelectBrand(r.Context(), req.BrandID)
	if err != nil {
		if errors.Is(err, session.ErrUnknownBrand) {
			respondError(w, http.StatusNotFound, "Brand not found")
			return
		}
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]models.Brand{"selected": brand})
}

func (a *API) activeBrand(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]*models.Brand{"active": a.session.ActiveBrand()})
}

// Item handlers

type itemRow struct {
	models.Product
	UpdatedAtWIB string `json:"updatedAtWib"`
}

type itemsResponse struct {
	Rows    []itemRow `json:"rows"`
	Total   int       `json:"total"`
	KPI     table.KPI `json:"kpi"`
	SortKey string    `json:"sortKey"`
	SortDir string    `json:"sortDir"`
}

func productOutlet(p models.Product) string {
	if p.Outlet == nil {
		return ""
	}
	return p.Outlet.Name
}

func productChannel(p models.Product) string {
	if p.Channel == nil {
		return ""
	}
	return p.Channel.Name
}

func productStatus(p models.Product) string {
	if p.Status == 1 {
		return "active"
	}
	return "inactive"
}

func itemKey(p models.Product, key string) table.Key {
	switch key {
	case "name":
		return table.StrKey(p.Name)
	case "channel":
		return table.StrKey(productChannel(p))
	case "outlet":
		return table.StrKey(productOutlet(p))
	case "price":
		return table.NumKey(p.Price.Value())
	case "status":
		return table.NumKey(float64(p.Status))
	case "updatedAt":
		return table.TimeKey(p.UpdatedAt)
	default:
		return table.StrKey("")
	}
}

// itemView fetches, filters and sorts the item table for the active
// brand. The fetch goes through a slot so a newer overlapping request
// cancels this one.
func (a *API) itemView(ctx context.Context, q url.Values) ([]models.Product, table.KPI, table.Sort, bool, error) {
	brand := a.session.ActiveBrand()
	if brand == nil {
		return nil, table.KPI{}, table.Sort{}, true, errNoActiveBrand
	}

	rows, applied, err := a.itemsSlot.Do(ctx, func(ctx context.Context) ([]models.Product, error) {
		return a.client.Products(ctx, brand.ID)
	})
	if err != nil {
		return nil, table.KPI{}, table.Sort{}, true, err
	}
	if !applied {
		return nil, table.KPI{}, table.Sort{}, false, nil
	}

	filtered := table.Filter(rows,
		table.Text(q.Get("q"),
			func(p models.Product) string { return p.Name },
			productOutlet,
			productChannel,
		),
		table.Equals(q.Get("status"), productStatus),
	)

	kpi := table.Aggregate(filtered,
		func(p models.Product) bool { return p.Status == 1 },
		productChannel,
		productOutlet,
	)

	a.itemsMu.Lock()
	if key := q.Get("sort"); key != "" {
		a.itemsSort = table.CycleItems(a.itemsSort, key)
	} else if key := q.Get("sortKey"); key != "" {
		dir := table.ParseDirection(q.Get("sortDir"))
		if dir == table.None {
			// the items table has no unsorted state
			dir = table.Asc
		}
		a.itemsSort = table.Sort{Key: key, Dir: dir}
	}
	sort := a.itemsSort
	a.itemsMu.Unlock()

	return table.SortBy(filtered, sort, itemKey), kpi, sort, true, nil
}

func (a *API) listItems(w http.ResponseWriter, r *http.Request) {
	rows, kpi, sort, applied, err := a.itemView(r.Context(), r.URL.Query())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	if !applied {
		respondSuperseded(w)
		return
	}

	out := make([]itemRow, len(rows))
	for i, p := range rows {
		out[i] = itemRow{Product: p, UpdatedAtWIB: datefmt.WIB(p.UpdatedAt)}
	}
	respondJSON(w, http.StatusOK, itemsResponse{
		Rows:    out,
		Total:   len(out),
		KPI:     kpi,
		SortKey: sort.Key,
		SortDir: sort.Dir.String(),
	})
}

func itemColumns() []csvx.Column[models.Product] {
	return []csvx.Column[models.Product]{
		{Header: "ID", Value: func(p models.Product, _ int) any { return p.ID }},
		{Header: "Nama Item", Value: func(p models.Product, _ int) any { return p.Name }},
		{Header: "Channel", Value: func(p models.Product, _ int) any { return productChannel(p) }},
		{Header: "Outlet", Value: func(p models.Product, _ int) any { return productOutlet(p) }},
		{Header: "Harga (IDR)", Value: func(p models.Product, _ int) any {
			if p.Price == nil {
				return nil
			}
			return p.Price.Value()
		}},
		{Header: "Status", Value: func(p models.Product, _ int) any {
			if p.Status == 1 {
				return "Aktif"
			}
			return "Tidak Aktif"
		}},
		{Header: "Terakhir Sinkron (WIB)", Value: func(p models.Product, _ int) any {
			return datefmt.CSV(p.UpdatedAt)
		}},
	}
}

func (a *API) exportItems(w http.ResponseWriter, r *http.Request) {
	rows, _, _, applied, err := a.itemView(r.Context(), r.URL.Query())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	if !applied {
		respondSuperseded(w)
		return
	}

	doc := csvx.Document(rows, itemColumns(), exportDelimiter(r))
	a.serveCSV(w, r, "items", doc, len(rows))
}

// Review handlers

type reviewRow struct {
	models.Review
	CreatedAtWIB string `json:"createdAtWib"`
}

type reviewsResponse struct {
	Rows    []reviewRow `json:"rows"`
	Total   int         `json:"total"`
	SortKey string      `json:"sortKey"`
	SortDir string      `json:"sortDir"`
}

func reviewOutlet(rv models.Review) string {
	if rv.Outlet == nil {
		return ""
	}
	return rv.Outlet.Name
}

func reviewChannel(rv models.Review) string {
	if rv.Channel == nil {
		return ""
	}
	return rv.Channel.Name
}

func reviewKey(rv models.Review, key string) table.Key {
	switch key {
	case "createdAt":
		return table.TimeKey(rv.CreatedAt)
	case "outletName":
		return table.StrKey(reviewOutlet(rv))
	case "channelName":
		return table.StrKey(reviewChannel(rv))
	case "rating":
		return table.NumKey(float64(rv.Rating))
	case "message":
		return table.StrKey(rv.Message)
	case "orderedProduct":
		return table.StrKey(rv.OrderedProduct)
	case "customerName":
		return table.StrKey(rv.CustomerName)
	default:
		return table.StrKey("")
	}
}

// reviewView fetches the review table with the filters pushed upstream,
// then re-applies the local subset the backend is not trusted to filter
// consistently.
func (a *API) reviewView(ctx context.Context, q url.Values) ([]models.Review, table.Sort, bool, error) {
	brand := a.session.ActiveBrand()
	if brand == nil {
		return nil, table.Sort{}, true, errNoActiveBrand
	}

	query := upstream.ReviewQuery{
		BrandID:   brand.ID,
		ChannelID: q.Get("channelId"),
		OutletID:  q.Get("outletId"),
		Rating:    q.Get("rating"),
		Q:         q.Get("q"),
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
	}

	rows, applied, err := a.reviewsSlot.Do(ctx, func(ctx context.Context) ([]models.Review, error) {
		return a.client.Reviews(ctx, query)
	})
	if err != nil {
		return nil, table.Sort{}, true, err
	}
	if !applied {
		return nil, table.Sort{}, false, nil
	}

	filtered := table.Filter(rows,
		table.Equals(q.Get("outletId"), func(rv models.Review) string {
			return strconv.FormatInt(rv.OutletID, 10)
		}),
		table.Text(q.Get("q"),
			func(rv models.Review) string { return rv.Message },
			func(rv models.Review) string { return rv.OrderedProduct },
			func(rv models.Review) string { return rv.CustomerName },
		),
		table.DateRange(q.Get("dateFrom"), q.Get("dateTo"), func(rv models.Review) string {
			return rv.CreatedAt
		}),
	)

	a.reviewsMu.Lock()
	if key := q.Get("sort"); key != "" {
		a.reviewsSort = table.CycleReviews(a.reviewsSort, key)
	} else if key := q.Get("sortKey"); key != "" {
		a.reviewsSort = table.Sort{Key: key, Dir: table.ParseDirection(q.Get("sortDir"))}
	}
	sort := a.reviewsSort
	a.reviewsMu.Unlock()

	return table.SortBy(filtered, sort, reviewKey), sort, true, nil
}

func (a *API) listReviews(w http.ResponseWriter, r *http.Request) {
	rows, sort, applied, err := a.reviewView(r.Context(), r.URL.Query())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	if !applied {
		respondSuperseded(w)
		return
	}

	out := make([]reviewRow, len(rows))
	for i, rv := range rows {
		out[i] = reviewRow{Review: rv, CreatedAtWIB: datefmt.WIB(rv.CreatedAt)}
	}
	respondJSON(w, http.StatusOK, reviewsResponse{
		Rows:    out,
		Total:   len(out),
		SortKey: sort.Key,
		SortDir: sort.Dir.String(),
	})
}

func reviewColumns() []csvx.Column[models.Review] {
	return []csvx.Column[models.Review]{
		{Header: "ID", Value: func(rv models.Review, _ int) any { return rv.ID }},
		{Header: "Tanggal", Value: func(rv models.Review, _ int) any { return datefmt.CSV(rv.CreatedAt) }},
		{Header: "Outlet", Value: func(rv models.Review, _ int) any { return reviewOutlet(rv) }},
		{Header: "Channel", Value: func(rv models.Review, _ int) any { return reviewChannel(rv) }},
		{Header: "Rating", Value: func(rv models.Review, _ int) any { return rv.Rating }},
		{Header: "Ulasan", Value: func(rv models.Review, _ int) any { return rv.Message }},
		{Header: "Menu", Value: func(rv models.Review, _ int) any { return rv.OrderedProduct }},
		{Header: "Pelanggan", Value: func(rv models.Review, _ int) any { return rv.CustomerName }},
	}
}

func (a *API) exportReviews(w http.ResponseWriter, r *http.Request) {
	rows, _, applied, err := a.reviewView(r.Context(), r.URL.Query())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	if !applied {
		respondSuperseded(w)
		return
	}

	doc := csvx.Document(rows, reviewColumns(), exportDelimiter(r))
	a.serveCSV(w, r, "reviews", doc, len(rows))
}

// Reference data handlers

func (a *API) listOutlets(w http.ResponseWriter, r *http.Request) {
	brand := a.session.ActiveBrand()
	if brand == nil {
		respondError(w, http.StatusConflict, "No active brand")
		return
	}
	outlets, err := a.client.Outlets(r.Context(), brand.ID)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]models.Outlet{"rows": outlets})
}

func (a *API) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := a.client.Channels(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]models.Channel{"data": channels})
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	raw, err := a.client.Dashboard(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (a *API) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	brand := a.session.ActiveBrand()
	if brand == nil {
		respondError(w, http.StatusConflict, "No active brand")
		return
	}
	summary, err := a.client.DashboardSummary(r.Context(), brand.ID)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (a *API) listExports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := a.store.ListExports(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Database error")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]store.ExportRecord{"exports": recs})
}

// Superadmin handlers

func (a *API) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := a.client.Companies(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]models.Company{"rows": companies})
}

func (a *API) createCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	company, err := a.client.CreateCompany(r.Context(), req.Name)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, company)
}

func (a *API) listCompanyBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := a.client.CompanyBrands(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]models.Brand{"rows": brands})
}

func (a *API) createCompanyBrand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	brand, err := a.client.CreateCompanyBrand(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, brand)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req models.NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if err := a.client.CreateUser(r.Context(), req); err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// CSV plumbing

func exportDelimiter(r *http.Request) rune {
	d := r.URL.Query().Get("delimiter")
	if d == "" {
		return csvx.DefaultDelimiter
	}
	return []rune(d)[0]
}

// serveCSV writes the document to the response and archives a copy
// best-effort; a failed archive never fails the download.
func (a *API) serveCSV(w http.ResponseWriter, r *http.Request, prefix, doc string, rowCount int) {
	filename := csvx.Filename(prefix, time.Now())
	body := csvx.WithBOM(doc)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))

	if a.exports == nil {
		return
	}
	location, err := a.exports.Put(r.Context(), filename, []byte(body))
	if err != nil {
		log.Printf("export archive failed: %v", err)
		return
	}
	rec := store.ExportRecord{
		ID:       uuid.New().String(),
		Filename: filename,
		Location: location,
		RowCount: rowCount,
	}
	if err := a.store.LogExport(&rec); err != nil {
		log.Printf("export log failed: %v", err)
	}
}

// Error plumbing

var errNoActiveBrand = errors.New("no active brand")

func respondUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, errNoActiveBrand):
		respondError(w, http.StatusConflict, "No active brand")
	case errors.Is(err, upstream.ErrUnreachable):
		respondError(w, http.StatusBadGateway, "Cannot reach server")
	case errors.As(err, &apiErr):
		respondError(w, apiErr.Status, apiErr.Error())
	default:
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

// respondSuperseded answers a request whose fetch was cancelled by a
// newer one for the same view. The newer request carries the result.
func respondSuperseded(w http.ResponseWriter) {
	respondJSON(w, http.StatusConflict, map[string]string{"error": "Superseded by a newer request"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
