package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/luxe-store/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.products.List(r.Context(), product.Filters{
		Category:    q.Get("category"),
		Subcategory: q.Get("subcategory"),
		Search:      q.Get("search"),
		MinPrice:    q.Get("minPrice"),
		MaxPrice:    q.Get("maxPrice"),
		IsNew:       q.Get("isNew"),
		IsSale:      q.Get("isSale"),
		SortBy:      q.Get("sortBy"),
		SortOrder:   q.Get("sortOrder"),
		Page:        q.Get("page"),
		Limit:       q.Get("limit"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := page.Pagination
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "products", func(e *jx.Encoder) { h.encodeProducts(e, page.Items) })
		field(e, "pagination", func(e *jx.Encoder) {
			e.ObjStart()
			field(e, "currentPage", func(e *jx.Encoder) { e.Int(p.Page) })
			field(e, "limit", func(e *jx.Encoder) { e.Int(p.Limit) })
			field(e, "totalPages", func(e *jx.Encoder) { e.Int(p.TotalPages) })
			field(e, "totalProducts", func(e *jx.Encoder) { e.Int(p.Total) })
			field(e, "hasNext", func(e *jx.Encoder) { e.Bool(p.HasNext) })
			field(e, "hasPrev", func(e *jx.Encoder) { e.Bool(p.HasPrev) })
			e.ObjEnd()
		})
		e.ObjEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

func decodeProduct(r *http.Request) (product.Product, error) {
	var p product.Product
	data, err := readBody(r)
	if err != nil {
		return p, err
	}
	if err := p.Decode(jx.DecodeBytes(data)); err != nil {
		return p, wrapBadBody(err)
	}
	return p, nil
}

func (h *Handler) writeProductResult(w http.ResponseWriter, status int, msg string, p *product.Product) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "message", msg)
		field(e, "product", func(e *jx.Encoder) { h.encodeProduct(e, *p) })
		e.ObjEnd()
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeProductResult(w, http.StatusCreated, "Product created successfully", p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeProductResult(w, http.StatusOK, "Product updated successfully", p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Product deleted successfully")
}

func (h *Handler) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range product.Categories() {
			e.ObjStart()
			field(e, "id", func(e *jx.Encoder) { e.Int(c.ID) })
			strField(e, "name", c.Name)
			strField(e, "slug", c.Slug)
			strField(e, "description", c.Description)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "message", msg)
		e.ObjEnd()
	})
}
