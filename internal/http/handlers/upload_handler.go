// Upload HTTP handler.
//
//   - POST /models/{id}/videos  (multipart upload → ingest pipeline)
//
// The client may send an Idempotency-Key header; the validated key becomes
// the wallet-debit reference for this upload attempt, making a retry after a
// dropped response safe against double charging.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lora-backend/internal/http/middleware"
	"github.com/tbourn/go-lora-backend/internal/services"
)

// maxUploadMemory bounds the multipart parser's in-memory buffer; larger
// files spill to temp files.
const maxUploadMemory = 32 << 20

// UploadVideo godoc
// @ID          uploadVideo
// @Summary     Upload a training video
// @Description Ingests one video for the model: quota checks, byte-proportional wallet debit, storage write, accounting.
// @Tags        Uploads
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID        header    string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header    string  false "Debit idempotency key for this upload attempt"
// @Param       id               path      string  true  "Model ID"
// @Param       file             formData  file    true  "Video file"
//
// @Success     201  {object}  services.IngestResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid upload"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient wallet balance"
// @Failure     403  {object}  handlers.ErrorResponse  "Quota limit reached"
// @Failure     404  {object}  handlers.ErrorResponse  "Model not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Model archived"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /models/{id}/videos [post]
func (h *Handlers) UploadVideo(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid multipart body")
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing file field")
		return
	}
	defer file.Close()

	up := services.Upload{
		Filename:  header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		SizeBytes: header.Size,
		Body:      file,
	}
	if key, okKey := middleware.GetIdempotencyKey(c); okKey {
		up.ExternalRef = key
	}

	res, err := h.uploadSvc.Ingest(c.Request.Context(), userID(c), c.Param("id"), up)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}
