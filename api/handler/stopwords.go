package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
	"github.com/Gl0balRak/textanalyzer-gateway/stopwords"
)

// UploadStopwords handles POST /stopwords. The word list arrives as a
// multipart file upload and replaces the session's stop words; they are
// merged into the excluded words of every subsequent analysis run.
func (a *API) UploadStopwords(c *gin.Context) {
	sess := a.Sessions.Acquire(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, &models.ValidationError{Field: "file", Message: "stop word file is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, &models.ValidationError{Field: "file", Message: "cannot open upload: " + err.Error()})
		return
	}
	defer f.Close()

	words, err := stopwords.Parse(f)
	if err != nil {
		writeError(c, &models.ValidationError{Field: "file", Message: "cannot read upload: " + err.Error()})
		return
	}

	sess.SetStopwords(words)
	c.JSON(http.StatusOK, gin.H{
		"count": len(words),
		"words": words,
	})
}
