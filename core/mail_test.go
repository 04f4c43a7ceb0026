package core_test

import (
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/learnspace/core"
)

func TestEmailMessage_Render(t *testing.T) {
	msg := &EmailMessage{
		To:           []mail.Address{{Name: "Tom", Address: "tom@learnspace.test"}},
		Subject:      "New submission",
		TemplateName: "submission_submitted",
		TemplateData: map[string]interface{}{
			"TeacherName":     "Tom",
			"StudentName":     "Amy",
			"AssignmentID":    "asg-1",
			"AssignmentTitle": "Measure the box",
			"SubmittedAt":     "2021-03-04 10:00 UTC",
			"Answered":        2,
			"TaskCount":       2,
		},
	}

	if assert.NoError(t, msg.Render("http://learnspace.test")) {
		assert.True(t, msg.HasContent())
		assert.Contains(t, msg.TextContent, `Amy submitted "Measure the box"`)
		// the layout is rendered around the content
		assert.Contains(t, msg.TextContent, "LearnSpace\nhttp://learnspace.test")
		assert.Contains(t, msg.HTMLContent, "Measure the box")
		assert.Contains(t, msg.HTMLContent, "http://learnspace.test/dashboard/assignments/asg-1/submissions")
	}

	t.Run("unknown template", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "nope"}
		err := msg.Render("http://learnspace.test")
		assert.True(t, errors.Is(err, ErrUnknownTemplate))
		assert.False(t, msg.HasContent())
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{BodyStr: "hello"}
		assert.NoError(t, msg.Render(""))
		assert.Equal(t, "hello", msg.TextContent)
	})
}
