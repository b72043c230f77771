package resources

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dispatch-gateway/core"
	"dispatch-gateway/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Collections are the document-backed resources mounted under the API prefix.
var Collections = []string{
	"users",
	"services",
	"trucks",
	"messages",
	"pickups",
	"branches",
	"bookings",
	"locations",
}

// maxBodySize bounds a single document payload.
const maxBodySize = 1 << 20

// Routes serves CRUD over one collection of the store.
func Routes(store core.DocumentStore, collection string) chi.Router {
	r := chi.NewRouter()
	r.Get("/", HandleList(store, collection))
	r.Post("/", HandleCreate(store, collection))
	r.Get("/{id}", HandleGet(store, collection))
	r.Put("/{id}", HandleUpdate(store, collection))
	r.Delete("/{id}", HandleDelete(store, collection))
	return r
}

func HandleList(store core.DocumentStore, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.List(r.Context(), collection)
		if err != nil {
			middleware.InternalError(w, r, err)
			return
		}

		if docs == nil {
			docs = []*core.Document{}
		}
		render.JSON(w, r, docs)
	}
}

func HandleGet(store core.DocumentStore, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := store.Get(r.Context(), collection, id)
		if err != nil {
			storeError(w, r, err, collection, id)
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleCreate(store core.DocumentStore, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := readObject(w, r)
		if !ok {
			return
		}

		doc := &core.Document{Collection: collection, Data: data}
		if actor, ok := core.ActorFrom(r.Context()); ok {
			doc.CreatedBy = actor.ID
		}

		if _, err := store.Create(r.Context(), doc); err != nil {
			middleware.InternalError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, doc)
	}
}

func HandleUpdate(store core.DocumentStore, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		data, ok := readObject(w, r)
		if !ok {
			return
		}

		if err := store.Update(r.Context(), &core.Document{ID: id, Collection: collection, Data: data}); err != nil {
			storeError(w, r, err, collection, id)
			return
		}

		doc, err := store.Get(r.Context(), collection, id)
		if err != nil {
			storeError(w, r, err, collection, id)
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleDelete(store core.DocumentStore, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := store.Delete(r.Context(), collection, id); err != nil {
			storeError(w, r, err, collection, id)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// readObject reads the request body and accepts only a JSON object.
func readObject(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, middleware.ErrorResponse{Error: "Failed to read request body"})
		return nil, false
	}
	defer r.Body.Close()

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, middleware.ErrorResponse{Error: "Request body must be a JSON object"})
		return nil, false
	}
	return json.RawMessage(body), true
}

func storeError(w http.ResponseWriter, r *http.Request, err error, collection, id string) {
	if errors.Is(err, core.ErrNotFound) {
		logrus.WithFields(logrus.Fields{
			"collection":  collection,
			"document_id": id,
		}).Debug("Document not found")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, middleware.ErrorResponse{Error: "Not Found", Message: "Document " + id + " not found"})
		return
	}
	middleware.InternalError(w, r, err)
}
