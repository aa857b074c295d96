package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careatlas/therapist-directory/internal/aws"
	"github.com/careatlas/therapist-directory/internal/pagination"
	"github.com/careatlas/therapist-directory/internal/therapists"
	"github.com/careatlas/therapist-directory/internal/validation"
)

// HandlerConfig groups every collaborator and identifier the therapist API
// needs: storage, the (area, type) index, token TTL and secret, the change
// queue, and the owner used when a request carries no owner header.
type HandlerConfig struct {
	DynamoDBClient aws.DynamoDBAPI
	SQSClient      aws.SQSAPI
	TableName      string
	IndexName      string
	QueueURL       string
	DefaultOwner   string
	TokenTTL       time.Duration
	TokenSecret    string
}

// ownerHeader lets a caller scope requests to its own partition; absent, the
// configured default owner applies.
const ownerHeader = "X-Owner-Id"

// therapistResponse is the full record shape for get/create/update.
type therapistResponse struct {
	TherapistID   string  `json:"therapistId"`
	TherapistName *string `json:"therapistName,omitempty"`
	TherapistArea *string `json:"therapistArea,omitempty"`
	TherapistType *string `json:"therapistType,omitempty"`
	TherapistMob  *int64  `json:"therapistMob,omitempty"`
	CreationTime  string  `json:"creationTime"`
	Version       int64   `json:"version"`
}

// therapistSummary is the list/search shape: no version.
type therapistSummary struct {
	TherapistID   string  `json:"therapistId"`
	TherapistName *string `json:"therapistName,omitempty"`
	TherapistArea *string `json:"therapistArea,omitempty"`
	TherapistType *string `json:"therapistType,omitempty"`
	TherapistMob  *int64  `json:"therapistMob,omitempty"`
	CreationTime  string  `json:"creationTime"`
}

type therapistListResponse struct {
	Therapist []therapistSummary `json:"therapist"`
	NextToken string             `json:"nextToken,omitempty"`
}

// RegisterTherapistRoutes registers the therapist API.
func RegisterTherapistRoutes(r *gin.Engine, cfg HandlerConfig) error {
	v := validation.New()
	tokens, err := pagination.NewTokenSerializer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	store := therapists.NewStore(cfg.DynamoDBClient, therapists.Config{
		TableName: cfg.TableName,
		IndexName: cfg.IndexName,
		Tokens:    tokens,
	})
	var publisher *aws.Publisher
	if cfg.SQSClient != nil && cfg.QueueURL != "" {
		publisher = aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)
	}

	owner := func(c *gin.Context) string {
		if o := c.GetHeader(ownerHeader); o != "" {
			return o
		}
		return cfg.DefaultOwner
	}

	r.POST("/therapists", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateTherapistRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		rec, err := store.Create(ctx, owner(c), therapists.CreateInput{
			Name:   req.TherapistName,
			Area:   req.TherapistArea,
			Type:   req.TherapistType,
			Mobile: req.TherapistMob,
		})
		if err != nil {
			writeStoreError(c, err)
			return
		}

		publishChange(ctx, publisher, "created", rec.UserID, rec.TherapistID, c.GetHeader("X-Request-Id"))
		c.Header("Location", "/therapists/"+rec.TherapistID)
		c.JSON(http.StatusCreated, toResponse(rec))
	})

	r.GET("/therapists/:therapistId", func(c *gin.Context) {
		rec, err := store.Get(c.Request.Context(), owner(c), c.Param("therapistId"))
		if err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponse(rec))
	})

	r.GET("/therapists", func(c *gin.Context) {
		limit, ok := parseMaxItems(c)
		if !ok {
			return
		}
		page, err := store.List(c.Request.Context(), owner(c), limit, c.Query("nextToken"))
		if err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, toListResponse(page))
	})

	r.GET("/therapists/search", func(c *gin.Context) {
		area := c.Query("therapistArea")
		if area == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"errorCode": "InvalidRequest",
				"message":   "therapistArea is required.",
			})
			return
		}
		limit, ok := parseMaxItems(c)
		if !ok {
			return
		}
		page, err := store.QueryByAreaType(c.Request.Context(), area, c.Query("therapistType"), limit, c.Query("nextToken"))
		if err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, toListResponse(page))
	})

	r.PUT("/therapists/:therapistId", func(c *gin.Context) {
		ctx := c.Request.Context()
		therapistID := c.Param("therapistId")

		var req validation.UpdateTherapistRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		rec, err := store.Update(ctx, owner(c), therapistID, therapists.UpdateInput{
			Name:   req.TherapistName,
			Area:   req.TherapistArea,
			Type:   req.TherapistType,
			Mobile: req.TherapistMob,
		})
		if err != nil {
			writeStoreError(c, err)
			return
		}

		publishChange(ctx, publisher, "updated", rec.UserID, rec.TherapistID, c.GetHeader("X-Request-Id"))
		c.JSON(http.StatusOK, toResponse(rec))
	})

	r.DELETE("/therapists/:therapistId", func(c *gin.Context) {
		ctx := c.Request.Context()
		therapistID := c.Param("therapistId")

		if err := store.Delete(ctx, owner(c), therapistID); err != nil {
			writeStoreError(c, err)
			return
		}

		publishChange(ctx, publisher, "deleted", owner(c), therapistID, c.GetHeader("X-Request-Id"))
		c.Status(http.StatusNoContent)
	})

	return nil
}

// writeStoreError maps the store's closed error set onto HTTP responses.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, therapists.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"errorCode": "TherapistNotFound",
			"message":   "Therapist can not be found.",
		})
	case errors.Is(err, therapists.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{
			"errorCode": "TherapistAlreadyExist",
			"message":   "Therapist already exists.",
		})
	case errors.Is(err, therapists.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"errorCode": "ConcurrentModification",
			"message":   "Therapist was modified concurrently. Reload and retry.",
		})
	case errors.Is(err, therapists.ErrNoUpdate):
		c.JSON(http.StatusBadRequest, gin.H{
			"errorCode": "InvalidRequest",
			"message":   "No update is present.",
		})
	case errors.Is(err, pagination.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{
			"errorCode": "InvalidRequest",
			"message":   "NextToken is invalid.",
		})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"errorCode": "InternalFailure",
			"message":   "The request failed. Please try again later.",
		})
	}
}

// parseMaxItems reads maxItems; a non-numeric or out-of-range value is a 400.
func parseMaxItems(c *gin.Context) (int, bool) {
	raw := c.Query("maxItems")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > therapists.MaxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{
			"errorCode": "InvalidRequest",
			"message":   "maxItems must be an integer between 1 and 100.",
		})
		return 0, false
	}
	return n, true
}

// publishChange sends a change event to SQS. The write already committed, so
// a publish failure is logged rather than failing the request.
func publishChange(ctx context.Context, publisher *aws.Publisher, eventType, ownerID, therapistID, correlationID string) {
	if publisher == nil {
		return
	}
	body, _ := json.Marshal(map[string]string{
		"eventType":   eventType,
		"ownerId":     ownerID,
		"therapistId": therapistID,
	})
	attrs := map[string]string{
		"event_type":  eventType,
		"therapistId": therapistID,
	}
	if correlationID != "" {
		attrs["correlation_id"] = correlationID
	}
	if err := publisher.SendChangeEvent(ctx, string(body), attrs); err != nil {
		log.Printf("publish %s event for therapist %s: %v", eventType, therapistID, err)
	}
}

func toResponse(rec *therapists.Record) therapistResponse {
	return therapistResponse{
		TherapistID:   rec.TherapistID,
		TherapistName: rec.Name,
		TherapistArea: rec.Area,
		TherapistType: rec.Type,
		TherapistMob:  rec.Mobile,
		CreationTime:  rec.CreatedAt.UTC().Format(time.RFC3339),
		Version:       rec.Version,
	}
}

func toListResponse(page *therapists.Page) therapistListResponse {
	out := therapistListResponse{
		Therapist: make([]therapistSummary, 0, len(page.Items)),
		NextToken: page.NextToken,
	}
	for _, item := range page.Items {
		out.Therapist = append(out.Therapist, therapistSummary{
			TherapistID:   item.TherapistID,
			TherapistName: item.Name,
			TherapistArea: item.Area,
			TherapistType: item.Type,
			TherapistMob:  item.Mobile,
			CreationTime:  item.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
