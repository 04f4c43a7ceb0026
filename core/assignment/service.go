package assignment

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

var (
	// errors
	ErrNotFound             = errors.New("assignment not found")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrSubmissionExists     = errors.New("a submission for this assignment already exists, update it instead")
	ErrSubmissionReadOnly   = errors.New("submission already submitted and can no longer be changed")
	ErrForbidden            = errors.New("permission denied")
	errInvalidContent       = errors.New("content must be a JSON list of {question, answer} objects")
	errInvalidStatus        = errors.New("status must be one of: draft, submitted")
	errUnknownModel         = errors.New("model not found")
	errUnknownAssignment    = errors.New("assignment not found")
	errUnknownStudents      = errors.New("unknown students")
	errGradeNotSubmitted    = errors.New("only submitted work can be graded")
	errScreenshotNotAnImage = errors.New("screenshot must be an image")

	screenshotFolder = "submissions/screenshots"
	nowFunc          = time.Now // mockable
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)

		// CreateSubmission returns ErrSubmissionExists if the (assignment, student) pair already has one.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, filter SubmissionFilter) (Submission, error)
		QuerySubmissions(ctx context.Context, filter *SubmissionFilter, ordering []core.DBOrdering) ([]Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	ServiceInterface interface {
		CreateAssignment(ctx context.Context, actor user.User, na NewAssignment) (Assignment, error)
		QueryAssignments(ctx context.Context, actor user.User) ([]Assignment, error)
		GetAssignment(ctx context.Context, actor user.User, id string) (Assignment, error)
		SubmissionsStatus(ctx context.Context, actor user.User, assignmentID string) ([]StudentStatus, error)

		CreateSubmission(ctx context.Context, actor user.User, data SubmissionData) (Submission, error)
		UpdateSubmission(ctx context.Context, actor user.User, id string, data SubmissionData) (Submission, error)
		GetSubmission(ctx context.Context, actor user.User, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, actor user.User, filter SubmissionFilter) ([]Submission, error)
		GradeSubmission(ctx context.Context, actor user.User, id string, gd GradeData) (Submission, error)
		// OpenScreenshot returns the stored screenshot of a Submission; callers must close it.
		OpenScreenshot(ctx context.Context, actor user.User, id string) (io.ReadCloser, error)

		DashboardStats(ctx context.Context, actor user.User) (Stats, error)
	}

	service struct {
		repo          Repository
		usrSvc        user.ServiceInterface
		mdlSvc        model3d.ServiceInterface
		store         core.FileStore
		mailSvc       core.EmailService
		logger        core.Logger
		maxImageWidth int
		runAsync      func(func())
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(
	conf *core.Config,
	logger core.Logger,
	repo Repository,
	usrSvc user.ServiceInterface,
	mdlSvc model3d.ServiceInterface,
	store core.FileStore,
	mailSvc core.EmailService,
) *service {
	return &service{
		repo:          repo,
		usrSvc:        usrSvc,
		mdlSvc:        mdlSvc,
		store:         store,
		mailSvc:       mailSvc,
		logger:        logger,
		maxImageWidth: conf.Storage.MaxImageWidth,
		runAsync:      func(f func()) { go f() },
	}
}

// Assignments

func (svc *service) CreateAssignment(ctx context.Context, actor user.User, na NewAssignment) (Assignment, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Assignment{}, ErrForbidden
	}

	mdl, err := svc.mdlSvc.Get(ctx, na.ModelID)
	if err != nil {
		if errors.Cause(err) == model3d.ErrNotFound {
			return Assignment{}, core.NewFieldError("model", errUnknownModel)
		}
		return Assignment{}, errors.Wrap(err, "finding model")
	}

	students := dedupe(na.AssignedStudents)
	if len(students) > 0 {
		found, err := svc.usrSvc.QueryByIDs(students)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "finding assigned students")
		}
		for _, id := range students {
			if usr, ok := found[id]; !ok || !usr.IsStudent() {
				return Assignment{}, core.NewValidationError(
					errUnknownStudents,
					core.FieldError{Field: "assigned_students", Error: errUnknownStudents.Error() + ": " + id},
				)
			}
		}
	}

	var dueDate *time.Time
	if na.DueDate != nil {
		d := na.DueDate.UTC()
		dueDate = &d
	}

	asg, err := svc.repo.CreateAssignment(ctx, Assignment{
		Title:            na.Title,
		Description:      na.Description,
		TeacherID:        actor.ID,
		ModelID:          mdl.ID,
		AssignedStudents: students,
		DueDate:          dueDate,
		Tasks:            na.Tasks,
		CreatedAt:        nowFunc().UTC(),
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}

	asg.Teacher = &actor
	asg.Model = &mdl
	return asg, nil
}

func (svc *service) QueryAssignments(ctx context.Context, actor user.User) ([]Assignment, error) {
	assignments, err := svc.queryVisibleAssignments(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err = svc.embedAssignmentRelations(ctx, actor, assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (svc *service) queryVisibleAssignments(ctx context.Context, actor user.User) ([]Assignment, error) {
	var filter QueryFilter
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
	default:
		filter.VisibleTo = actor.ID
	}

	assignments, err := svc.repo.QueryAssignments(ctx, &filter, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

func (svc *service) GetAssignment(ctx context.Context, actor user.User, id string) (Assignment, error) {
	asg, err := svc.getAccessibleAssignment(ctx, actor, id)
	if err != nil {
		return Assignment{}, err
	}

	assignments := []Assignment{asg}
	if err = svc.embedAssignmentRelations(ctx, actor, assignments); err != nil {
		return Assignment{}, err
	}
	return assignments[0], nil
}

// getAccessibleAssignment hides assignments the actor may not see behind ErrNotFound.
func (svc *service) getAccessibleAssignment(ctx context.Context, actor user.User, id string) (Assignment, error) {
	asg, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		if asg.TeacherID != actor.ID {
			return Assignment{}, ErrNotFound
		}
	case actor.IsStudent():
		if !asg.VisibleTo(actor.ID) {
			return Assignment{}, ErrNotFound
		}
	default:
		return Assignment{}, ErrNotFound
	}
	return asg, nil
}

// embedAssignmentRelations sets Teacher, Model and, for students, MySubmission on every assignment.
func (svc *service) embedAssignmentRelations(ctx context.Context, actor user.User, assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	teacherIDs := make([]string, 0, len(assignments))
	for _, asg := range assignments {
		teacherIDs = append(teacherIDs, asg.TeacherID)
	}
	teachers, err := svc.usrSvc.QueryByIDs(dedupe(teacherIDs))
	if err != nil {
		return errors.Wrap(err, "finding teachers")
	}

	var mySubs map[string]Submission
	if actor.IsStudent() {
		subs, err := svc.repo.QuerySubmissions(ctx, &SubmissionFilter{StudentID: actor.ID}, nil)
		if err != nil {
			return errors.Wrap(err, "querying own submissions")
		}
		mySubs = make(map[string]Submission, len(subs))
		for _, sub := range subs {
			sub.Student = &actor
			mySubs[sub.AssignmentID] = sub
		}
	}

	models := make(map[string]model3d.Model)
	for i := range assignments {
		asg := &assignments[i]

		if teacher, ok := teachers[asg.TeacherID]; ok {
			asg.Teacher = &teacher
		}

		if asg.ModelID != "" {
			mdl, ok := models[asg.ModelID]
			if !ok {
				mdl, err = svc.mdlSvc.Get(ctx, asg.ModelID)
				if err != nil && errors.Cause(err) != model3d.ErrNotFound {
					return errors.Wrap(err, "finding model")
				}
				models[asg.ModelID] = mdl
			}
			if mdl.ID != "" {
				asg.Model = &mdl
			}
		}

		if sub, ok := mySubs[asg.ID]; ok {
			asg.MySubmission = &sub
		}
	}
	return nil
}

// SubmissionsStatus returns the roster of an assignment: one row per assigned student
// (every active student when nobody in particular is assigned), ordered by username.
func (svc *service) SubmissionsStatus(ctx context.Context, actor user.User, assignmentID string) ([]StudentStatus, error) {
	asg, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !(actor.IsAdmin() || (actor.IsTeacher() && asg.TeacherID == actor.ID)) {
		if actor.IsStudent() && !asg.VisibleTo(actor.ID) {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}

	var students []user.User
	if len(asg.AssignedStudents) > 0 {
		found, err := svc.usrSvc.QueryByIDs(asg.AssignedStudents)
		if err != nil {
			return nil, errors.Wrap(err, "finding assigned students")
		}
		for _, usr := range found {
			students = append(students, usr)
		}
	} else {
		if students, err = svc.usrSvc.ListStudents(); err != nil {
			return nil, errors.Wrap(err, "listing students")
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Username < students[j].Username })

	subs, err := svc.repo.QuerySubmissions(ctx, &SubmissionFilter{AssignmentID: asg.ID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	byStudent := make(map[string]Submission, len(subs))
	for _, sub := range subs {
		byStudent[sub.StudentID] = sub
	}

	roster := make([]StudentStatus, 0, len(students))
	for _, student := range students {
		row := StudentStatus{
			Student: StudentRef{ID: student.ID, Username: student.Username, Email: student.Email},
			Status:  StatusPending,
		}
		if sub, ok := byStudent[student.ID]; ok {
			subID := sub.ID
			row.Status = sub.Status
			row.SubmittedAt = sub.SubmittedAt
			row.SubmissionID = &subID
		}
		roster = append(roster, row)
	}
	return roster, nil
}

// Submissions

func (svc *service) CreateSubmission(ctx context.Context, actor user.User, data SubmissionData) (Submission, error) {
	if !actor.IsStudent() {
		return Submission{}, ErrForbidden
	}

	status := StatusDraft
	if data.Status != nil {
		status = *data.Status
	}
	if !status.Valid() {
		return Submission{}, core.NewFieldError("status", errInvalidStatus)
	}

	asg, err := svc.getAccessibleAssignment(ctx, actor, data.AssignmentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Submission{}, core.NewFieldError("assignment", errUnknownAssignment)
		}
		return Submission{}, errors.Wrap(err, "finding assignment")
	}

	// fail fast: the unique index is the real guard against concurrent creates
	if _, err = svc.repo.GetSubmission(ctx, SubmissionFilter{AssignmentID: asg.ID, StudentID: actor.ID}); err == nil {
		return Submission{}, ErrSubmissionExists
	} else if errors.Cause(err) != ErrSubmissionNotFound {
		return Submission{}, errors.Wrap(err, "checking existing submission")
	}

	content, err := normalizeContent(asg.Tasks, data.Content)
	if err != nil {
		return Submission{}, err
	}

	now := nowFunc().UTC()
	sub := Submission{
		AssignmentID: asg.ID,
		StudentID:    actor.ID,
		Content:      content,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if status == StatusSubmitted {
		sub.SubmittedAt = &now
	}

	if data.Screenshot != nil {
		if sub.ScreenshotKey, err = svc.storeScreenshot(ctx, *data.Screenshot); err != nil {
			return Submission{}, err
		}
	}

	created, err := svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		if sub.ScreenshotKey != "" {
			_ = svc.store.Delete(ctx, sub.ScreenshotKey)
		}
		if errors.Cause(err) == ErrSubmissionExists {
			return Submission{}, ErrSubmissionExists
		}
		return Submission{}, errors.Wrap(err, "creating submission")
	}

	created.Student = &actor
	if created.Status == StatusSubmitted {
		svc.notifyTeacher(asg, actor, created)
	}
	return created, nil
}

func (svc *service) UpdateSubmission(ctx context.Context, actor user.User, id string, data SubmissionData) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, SubmissionFilter{ID: id})
	if err != nil {
		return Submission{}, err
	}
	if sub.StudentID != actor.ID {
		if actor.IsAdmin() || actor.IsTeacher() {
			return Submission{}, ErrForbidden
		}
		return Submission{}, ErrSubmissionNotFound
	}
	if sub.ReadOnly() {
		return Submission{}, ErrSubmissionReadOnly
	}

	asg, err := svc.repo.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding assignment")
	}

	if data.Status != nil {
		if !data.Status.Valid() {
			return Submission{}, core.NewFieldError("status", errInvalidStatus)
		}
	}
	if data.Content != nil {
		if sub.Content, err = normalizeContent(asg.Tasks, data.Content); err != nil {
			return Submission{}, err
		}
	}

	// sub is a draft here: submitting now is always the transition
	now := nowFunc().UTC()
	if data.Status != nil {
		sub.Status = *data.Status
	}
	if sub.Status == StatusSubmitted {
		sub.SubmittedAt = &now
	}
	sub.UpdatedAt = now

	// an omitted screenshot keeps the stored one
	oldKey := sub.ScreenshotKey
	if data.Screenshot != nil {
		if sub.ScreenshotKey, err = svc.storeScreenshot(ctx, *data.Screenshot); err != nil {
			return Submission{}, err
		}
	}

	updated, err := svc.repo.UpdateSubmission(ctx, sub)
	if err != nil {
		if data.Screenshot != nil {
			_ = svc.store.Delete(ctx, sub.ScreenshotKey)
		}
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	if data.Screenshot != nil && oldKey != "" {
		if err = svc.store.Delete(ctx, oldKey); err != nil {
			svc.logger.Warn("deleting replaced screenshot", errors.Wrap(err, oldKey))
		}
	}

	updated.Student = &actor
	if updated.Status == StatusSubmitted {
		svc.notifyTeacher(asg, actor, updated)
	}
	return updated, nil
}

func (svc *service) GetSubmission(ctx context.Context, actor user.User, id string) (Submission, error) {
	sub, err := svc.getAccessibleSubmission(ctx, actor, id)
	if err != nil {
		return Submission{}, err
	}
	subs := []Submission{sub}
	if err = svc.embedStudents(subs); err != nil {
		return Submission{}, err
	}
	return subs[0], nil
}

// getAccessibleSubmission hides submissions the actor may not see behind ErrSubmissionNotFound:
// students see their own, teachers those to their assignments, admins all of them.
func (svc *service) getAccessibleSubmission(ctx context.Context, actor user.User, id string) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, SubmissionFilter{ID: id})
	if err != nil {
		return Submission{}, err
	}
	switch {
	case actor.IsAdmin(), sub.StudentID == actor.ID:
		return sub, nil
	case actor.IsTeacher():
		asg, err := svc.repo.GetAssignment(ctx, sub.AssignmentID)
		if err != nil {
			return Submission{}, errors.Wrap(err, "finding assignment")
		}
		if asg.TeacherID == actor.ID {
			return sub, nil
		}
	}
	return Submission{}, ErrSubmissionNotFound
}

func (svc *service) QuerySubmissions(ctx context.Context, actor user.User, filter SubmissionFilter) ([]Submission, error) {
	filter.ID = ""
	filter.StudentID = ""
	filter.TeacherID = ""
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
	default:
		filter.StudentID = actor.ID
	}

	subs, err := svc.repo.QuerySubmissions(ctx, &filter, []core.DBOrdering{{Field: "updated_at"}})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	if err = svc.embedStudents(subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (svc *service) GradeSubmission(ctx context.Context, actor user.User, id string, gd GradeData) (Submission, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Submission{}, ErrForbidden
	}
	sub, err := svc.getAccessibleSubmission(ctx, actor, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status != StatusSubmitted {
		return Submission{}, core.NewFieldError("status", errGradeNotSubmitted)
	}

	sub.Grade = gd.Grade
	sub.Feedback = gd.Feedback
	sub.UpdatedAt = nowFunc().UTC()
	if sub, err = svc.repo.UpdateSubmission(ctx, sub); err != nil {
		return Submission{}, errors.Wrap(err, "grading submission")
	}
	subs := []Submission{sub}
	if err = svc.embedStudents(subs); err != nil {
		return Submission{}, err
	}
	return subs[0], nil
}

func (svc *service) OpenScreenshot(ctx context.Context, actor user.User, id string) (io.ReadCloser, error) {
	sub, err := svc.getAccessibleSubmission(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sub.ScreenshotKey == "" {
		return nil, ErrSubmissionNotFound
	}
	rc, err := svc.store.Get(ctx, sub.ScreenshotKey)
	if err != nil {
		if errors.Cause(err) == core.ErrFileNotFound {
			return nil, ErrSubmissionNotFound
		}
		return nil, errors.Wrap(err, "opening screenshot")
	}
	return rc, nil
}

func (svc *service) storeScreenshot(ctx context.Context, file core.UploadedFile) (string, error) {
	img, err := core.NormalizeImage(file, svc.maxImageWidth)
	if err != nil {
		if errors.Cause(err) == core.ErrNotAnImage {
			return "", core.NewFieldError("screenshot", errScreenshotNotAnImage)
		}
		return "", errors.Wrap(err, "normalizing screenshot")
	}
	key := core.UniqueFileKey(screenshotFolder, img.Filename)
	if err = svc.store.Put(ctx, key, img.Reader(), img.Size(), img.ContentType); err != nil {
		return "", errors.Wrap(err, "storing screenshot")
	}
	return key, nil
}

func (svc *service) embedStudents(subs []Submission) error {
	if len(subs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.StudentID)
	}
	students, err := svc.usrSvc.QueryByIDs(dedupe(ids))
	if err != nil {
		return errors.Wrap(err, "finding students")
	}
	for i := range subs {
		if student, ok := students[subs[i].StudentID]; ok {
			subs[i].Student = &student
		}
	}
	return nil
}

// normalizeContent rebuilds content from the assignment's tasks: one entry per task, the
// question being the task itself and the answer taken index-wise from the parsed content.
// A nil parse means no content was sent; an invalid one is rejected.
func normalizeContent(tasks TaskList, parsed *ContentParse) ([]ContentEntry, error) {
	var answers []string
	if parsed != nil {
		if !parsed.Valid {
			return nil, core.NewFieldError("content", errInvalidContent)
		}
		answers = parsed.Answers(len(tasks))
	}
	return BuildContent(tasks, answers), nil
}

func dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	return res
}
