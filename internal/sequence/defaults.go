package sequence

// Trigger event names accepted by the trigger endpoint.
const (
	TriggerSubscribed      = "subscribed"
	TriggerGuideDownloaded = "guide_downloaded"
	TriggerQuizCompleted   = "quiz_completed"
)

// Sequence ids.
const (
	SequenceWelcome       = "welcome"
	SequenceGuideDownload = "guide-download"
	SequenceQuizSoapOpera = "quiz-soap-opera"
)

// NewDefaultRegistry builds the production registry: the welcome drip, the
// guide-download funnel, and the eight-part quiz soap opera. The day-0 step
// of guide-download delivers the asset itself, which is why the daily cap
// exempts step 0 deliveries.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Definition{
		ID:   SequenceWelcome,
		Name: "Welcome drip",
		Steps: []Step{
			{OffsetDays: 0, TemplateID: "welcome-01-hello"},
			{OffsetDays: 3, TemplateID: "welcome-02-story"},
			{OffsetDays: 7, TemplateID: "welcome-03-social-proof"},
			{OffsetDays: 10, TemplateID: "welcome-04-objections"},
			{OffsetDays: 14, TemplateID: "welcome-05-invite"},
		},
	})

	r.Register(Definition{
		ID:   SequenceGuideDownload,
		Name: "Guide download funnel",
		Steps: []Step{
			{OffsetDays: 0, TemplateID: "guide-01-delivery"},
			{OffsetDays: 2, TemplateID: "guide-02-quick-win"},
			{OffsetDays: 4, TemplateID: "guide-03-case-study"},
			{OffsetDays: 6, TemplateID: "guide-04-objections"},
			{OffsetDays: 8, TemplateID: "guide-05-offer"},
		},
	})

	r.Register(Definition{
		ID:   SequenceQuizSoapOpera,
		Name: "Quiz soap opera",
		Steps: []Step{
			{OffsetDays: 0, TemplateID: "soap-01-results"},
			{OffsetDays: 2, TemplateID: "soap-02-backstory"},
			{OffsetDays: 4, TemplateID: "soap-03-wall"},
			{OffsetDays: 6, TemplateID: "soap-04-epiphany"},
			{OffsetDays: 8, TemplateID: "soap-05-hidden-benefit"},
			{OffsetDays: 10, TemplateID: "soap-06-urgency"},
			{OffsetDays: 12, TemplateID: "soap-07-last-call"},
			{OffsetDays: 14, TemplateID: "soap-08-door-closed"},
		},
	})

	r.BindTrigger(TriggerSubscribed, SequenceWelcome)
	r.BindTrigger(TriggerGuideDownloaded, SequenceGuideDownload)
	r.BindTrigger(TriggerQuizCompleted, SequenceQuizSoapOpera)

	return r
}
