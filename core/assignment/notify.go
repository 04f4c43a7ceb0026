package assignment

import (
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/user"
)

type submittedMailData struct {
	TeacherName     string
	StudentName     string
	AssignmentID    string
	AssignmentTitle string
	SubmittedAt     string
	Answered        int
	TaskCount       int
}

// notifyTeacher emails the teacher of asg that student finalized sub.
func (svc *service) notifyTeacher(asg Assignment, student user.User, sub Submission) {
	svc.runAsync(func() {
		teacher, err := svc.usrSvc.GetByID(asg.TeacherID)
		if err != nil {
			svc.logger.Error("finding teacher to notify", errors.Wrap(err, asg.TeacherID))
			return
		}
		if teacher.Email == "" {
			return
		}

		var answered int
		for _, entry := range sub.Content {
			if core.CleanString(entry.Answer) != "" {
				answered++
			}
		}
		data := submittedMailData{
			TeacherName:     teacher.DisplayName(),
			StudentName:     student.DisplayName(),
			AssignmentID:    asg.ID,
			AssignmentTitle: asg.Title,
			Answered:        answered,
			TaskCount:       len(asg.Tasks),
		}
		if sub.SubmittedAt != nil {
			data.SubmittedAt = sub.SubmittedAt.Format("Mon, 02 Jan 2006 15:04 MST")
		}

		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: teacher.DisplayName(), Address: teacher.Email}},
			Subject:      "New submission: " + asg.Title,
			TemplateName: "submission_submitted",
			TemplateData: data,
		})
	})
}
