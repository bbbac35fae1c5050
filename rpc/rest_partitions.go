package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/mux"

	"github.com/alphabill-org/partdist/hybridtime"
	"github.com/alphabill-org/partdist/logger"
	pd "github.com/alphabill-org/partdist/partitiondistribution"
	"github.com/alphabill-org/partdist/partitions"
	"github.com/alphabill-org/partdist/versioned"
)

type (
	chainStore interface {
		Partitions(ctx context.Context) ([]pd.PartitionID, error)
		ZonePartitions(ctx context.Context, zone uint32) ([]pd.PartitionID, error)
		Record(ctx context.Context, id pd.PartitionID) (*partitions.ChainRecord, error)
		Chain(ctx context.Context, id pd.PartitionID) (pd.AssignmentsChain, uint64, error)
		SetChain(ctx context.Context, id pd.PartitionID, chain pd.AssignmentsChain) (uint64, error)
		Append(ctx context.Context, id pd.PartitionID, a pd.Assignments) (pd.AssignmentsChain, uint64, error)
		Drop(ctx context.Context, id pd.PartitionID) error
	}

	chainResponse struct {
		Partition pd.PartitionID      `json:"partition"`
		Revision  uint64              `json:"revision"`
		Chain     pd.AssignmentsChain `json:"chain"`
	}

	revisionResponse struct {
		Partition pd.PartitionID `json:"partition"`
		Revision  uint64         `json:"revision"`
	}

	// appendRequest is the body of the POST request, when timestamp is
	// not set the server assigns one using it's hybrid clock.
	appendRequest struct {
		Nodes     []pd.Assignment       `json:"nodes"`
		Timestamp *hybridtime.Timestamp `json:"timestamp,omitempty"`
		Force     bool                  `json:"force"`
		FromReset bool                  `json:"fromReset"`
	}

	errorResponse struct {
		Message string `json:"message"`
	}
)

/*
PartitionEndpoints registers endpoints for managing reconfiguration history
of partitions:

	GET    /partitions[?zone={zone}]
	GET    /partitions/{zone}/{partition}/assignments
	PUT    /partitions/{zone}/{partition}/assignments
	POST   /partitions/{zone}/{partition}/assignments
	DELETE /partitions/{zone}/{partition}/assignments
*/
func PartitionEndpoints(store chainStore, clock *hybridtime.Clock, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		r.HandleFunc("/partitions", listPartitions(store, log)).Methods(http.MethodGet, http.MethodOptions)

		const path = "/partitions/{zone:[0-9]+}/{partition:[0-9]+}/assignments"
		r.HandleFunc(path, getChain(store, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc(path, putChain(store, log)).Methods(http.MethodPut)
		r.HandleFunc(path, appendAssignments(store, clock, log)).Methods(http.MethodPost)
		r.HandleFunc(path, dropChain(store, log)).Methods(http.MethodDelete)
	}
}

func listPartitions(store chainStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []pd.PartitionID
		var err error
		if zone := r.URL.Query().Get("zone"); zone != "" {
			z, perr := strconv.ParseUint(zone, 10, 32)
			if perr != nil {
				writeErrorStatus(w, r, http.StatusBadRequest, fmt.Errorf("invalid zone id: %w", perr), log)
				return
			}
			ids, err = store.ZonePartitions(r.Context(), uint32(z))
		} else {
			ids, err = store.Partitions(r.Context())
		}
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		if ids == nil {
			ids = []pd.PartitionID{}
		}
		writeJSON(w, r, http.StatusOK, ids, log)
	}
}

func getChain(store chainStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := partitionID(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}

		switch acceptedType(r) {
		case applicationOctetStream:
			rec, err := store.Record(r.Context(), id)
			if err != nil {
				writeError(w, r, err, log)
				return
			}
			w.Header().Set(headerContentType, applicationOctetStream)
			w.Header().Set(headerETag, etag(rec.Revision))
			if _, err := w.Write(rec.Chain); err != nil {
				log.WarnContext(r.Context(), "writing chain bytes", logger.Error(err))
			}
		case applicationCBOR:
			rec, err := store.Record(r.Context(), id)
			if err != nil {
				writeError(w, r, err, log)
				return
			}
			w.Header().Set(headerContentType, applicationCBOR)
			w.Header().Set(headerETag, etag(rec.Revision))
			if err := cbor.NewEncoder(w).Encode(rec); err != nil {
				log.WarnContext(r.Context(), "encoding chain record as CBOR", logger.Error(err))
			}
		default:
			chain, rev, err := store.Chain(r.Context(), id)
			if err != nil {
				writeError(w, r, err, log)
				return
			}
			w.Header().Set(headerETag, etag(rev))
			writeJSON(w, r, http.StatusOK, chainResponse{Partition: id, Revision: rev, Chain: chain}, log)
		}
	}
}

// putChain replaces the chain of the partition with versioned binary chain (of any supported version) in the body.
func putChain(store chainStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := partitionID(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		if ct := contentType(r); ct != applicationOctetStream {
			writeErrorStatus(w, r, http.StatusUnsupportedMediaType, fmt.Errorf("expected %s body, got %q", applicationOctetStream, ct), log)
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, fmt.Errorf("reading request body: %w", err), log)
			return
		}
		chain, err := versioned.FromBytes(data, pd.AssignmentsChainSerializer{})
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, fmt.Errorf("decoding chain: %w", err), log)
			return
		}
		rev, err := store.SetChain(r.Context(), id, chain)
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		w.Header().Set(headerETag, etag(rev))
		writeJSON(w, r, http.StatusOK, revisionResponse{Partition: id, Revision: rev}, log)
	}
}

func appendAssignments(store chainStore, clock *hybridtime.Clock, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := partitionID(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		var req appendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, fmt.Errorf("decoding request body: %w", err), log)
			return
		}
		a, err := req.assignments(clock)
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		chain, rev, err := store.Append(r.Context(), id, a)
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		w.Header().Set(headerETag, etag(rev))
		writeJSON(w, r, http.StatusOK, chainResponse{Partition: id, Revision: rev, Chain: chain}, log)
	}
}

func dropChain(store chainStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := partitionID(r)
		if err != nil {
			writeErrorStatus(w, r, http.StatusBadRequest, err, log)
			return
		}
		if err := store.Drop(r.Context(), id); err != nil {
			writeError(w, r, err, log)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

/*
assignments builds the snapshot of the request. The clock is consulted only
after the node set has been validated so that rejected requests do not
advance it.
*/
func (req *appendRequest) assignments(clock *hybridtime.Clock) (pd.Assignments, error) {
	if req.Timestamp != nil {
		a, err := req.build(*req.Timestamp)
		if err != nil {
			return pd.Assignments{}, err
		}
		clock.Update(*req.Timestamp)
		return a, nil
	}
	if _, err := req.build(hybridtime.Min); err != nil {
		return pd.Assignments{}, err
	}
	return req.build(clock.Now())
}

func (req *appendRequest) build(ts hybridtime.Timestamp) (pd.Assignments, error) {
	if req.Force {
		if req.FromReset {
			return pd.Assignments{}, fmt.Errorf("%w: forced assignments can't be from reset", pd.ErrInvalidArgument)
		}
		return pd.NewForcedAssignments(req.Nodes, ts)
	}
	return pd.NewAssignments(req.Nodes, ts, req.FromReset)
}

func partitionID(r *http.Request) (pd.PartitionID, error) {
	vars := mux.Vars(r)
	zone, err := strconv.ParseUint(vars["zone"], 10, 32)
	if err != nil {
		return pd.PartitionID{}, fmt.Errorf("invalid zone id: %w", err)
	}
	part, err := strconv.ParseUint(vars["partition"], 10, 32)
	if err != nil {
		return pd.PartitionID{}, fmt.Errorf("invalid partition number: %w", err)
	}
	return pd.PartitionID{Zone: uint32(zone), Partition: uint32(part)}, nil
}

func acceptedType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get(headerAccept))
	if err != nil {
		return applicationJson
	}
	return mt
}

func contentType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get(headerContentType))
	return mt
}

func etag(rev uint64) string {
	return strconv.Quote(strconv.FormatUint(rev, 10))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationJson)
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		log.WarnContext(r.Context(), "failed to encode response", logger.Error(err))
	}
}

/*
writeError maps store errors to HTTP status codes. Request bodies which
fail to decode are rejected by the handlers before reaching the store, so
ErrCorruptedData here means the stored data is damaged (500).
*/
func writeError(w http.ResponseWriter, r *http.Request, err error, log *slog.Logger) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, versioned.ErrCorruptedData):
		status = http.StatusInternalServerError
	case errors.Is(err, partitions.ErrPartitionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, partitions.ErrStaleAssignments):
		status = http.StatusConflict
	case errors.Is(err, pd.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	writeErrorStatus(w, r, status, err, log)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error, log *slog.Logger) {
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), logger.Error(err))
	}
	writeJSON(w, r, status, errorResponse{Message: err.Error()}, log)
}
