package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ImportStatement handles POST /accounts/:id/statements/import. The bank
// export comes as the multipart field "file" or as the raw body. Any row
// error rejects the whole file.
func (h *LedgerHandler) ImportStatement(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	body, closeBody, err := statementBody(c)
	if err != nil {
		h.bindFailed(c, err, dto.ErrCodeBadRequest)
		return
	}
	defer closeBody()

	st, err := csvimport.ReadStatement(body)
	switch {
	case errors.Is(err, csvimport.ErrEmptyFile), errors.Is(err, csvimport.ErrMissingHeader), errors.Is(err, csvimport.ErrNoDataRows):
		h.Error(c, dto.ErrCodeInvalidInput, err.Error())
		return
	case err != nil:
		h.bindFailed(c, err, dto.ErrCodeBadRequest)
		return
	case st.Errors.HasErrors():
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(middleware.GetRequestID(c), rowDetails(st.Errors)))
		return
	}

	lines := make([]financeapp.StatementLineRequest, 0, len(st.Lines))
	for _, l := range st.Lines {
		lines = append(lines, financeapp.StatementLineRequest{
			ExternalID: l.ExternalID,
			Amount:     l.Amount,
			Date:       l.Date,
			Type:       finance.TransactionType(l.Type),
		})
	}
	result, err := h.statements.Reconcile(c.Request.Context(), tenantID, id, lines)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func statementBody(c *gin.Context) (io.Reader, func(), error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return c.Request.Body, func() {}, nil
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func rowDetails(errs *csvimport.ErrorCollection) []dto.ValidationDetail {
	details := make([]dto.ValidationDetail, 0, len(errs.Errors()))
	for _, e := range errs.Errors() {
		field := fmt.Sprintf("row %d", e.Row)
		if e.Column != "" {
			field += "." + e.Column
		}
		details = append(details, dto.ValidationDetail{Field: field, Message: e.Message})
	}
	return details
}
