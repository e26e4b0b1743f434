package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/luxe-store/internal/domain/review"
)

func encodeReview(e *jx.Encoder, rv review.Review) {
	e.ObjStart()
	strField(e, "id", rv.ID)
	strField(e, "productId", rv.ProductID)
	strField(e, "userId", rv.UserID)
	field(e, "rating", func(e *jx.Encoder) { e.Int(rv.Rating) })
	strField(e, "title", rv.Title)
	strField(e, "comment", rv.Comment)
	timeField(e, "createdAt", rv.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	items, err := h.reviews.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, rv := range items {
			encodeReview(e, rv)
		}
		e.ArrEnd()
	})
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	var in review.Input
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rating":
			in.Rating, err = d.Int()
		case "title":
			in.Title, err = d.Str()
		case "comment":
			in.Comment, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	rv, err := h.reviews.Add(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "message", "Review added successfully")
		field(e, "review", func(e *jx.Encoder) { encodeReview(e, *rv) })
		e.ObjEnd()
	})
}
