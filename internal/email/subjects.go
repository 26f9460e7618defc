package email

// templates maps template ids from the sequence registry to their copy.
// Copy lives in code next to the registry definitions so a sequence and its
// emails ship together.
var templates = map[string]templateSpec{
	// Welcome drip.
	"welcome-01-hello": {
		Subject: "Welcome, {{first_name}}!",
		Heading: "Great to have you here",
		Paragraphs: []string{
			"Thanks for joining. Over the next two weeks we will send you our best material on running a vacation rental that guests rave about.",
			"No fluff, just the things that actually moved the needle for hundreds of hosts.",
		},
	},
	"welcome-02-story": {
		Subject: "How one host doubled her bookings",
		Heading: "From empty calendar to fully booked",
		Paragraphs: []string{
			"When Marta listed her first apartment she barely got a booking a month. Two changes to her guest communication turned that around completely.",
			"We wrote up exactly what she did so you can copy it.",
		},
		CTALabel: "Read the story",
		CTAURL:   "{{site_url}}/blog/marta",
	},
	"welcome-03-social-proof": {
		Subject: "What 500+ hosts say about guest guides",
		Heading: "You are in good company",
		Paragraphs: []string{
			"More than five hundred hosts now welcome their guests with a digital guide instead of a stack of paper.",
			"Fewer repeated questions, better reviews. Here is what they report.",
		},
		CTALabel: "See the results",
		CTAURL:   "{{site_url}}/results",
	},
	"welcome-04-objections": {
		Subject: "\"I don't have time for this\"",
		Heading: "It takes less time than you think",
		Paragraphs: []string{
			"The most common reason hosts put off building a guest guide is time. Most finish theirs in under fifteen minutes.",
			"Start with the three sections guests actually read: arrival, wifi, and house rules.",
		},
		CTALabel: "Start your guide",
		CTAURL:   "{{site_url}}/start",
	},
	"welcome-05-invite": {
		Subject: "Ready when you are, {{first_name}}",
		Heading: "Your guests are waiting",
		Paragraphs: []string{
			"That is everything we wanted to share to get you started. The next step is yours.",
			"Create your first guide today and send it to your next guest.",
		},
		CTALabel: "Create my guide",
		CTAURL:   "{{site_url}}/start",
	},

	// Guide download funnel. Step 0 delivers the asset itself.
	"guide-01-delivery": {
		Subject: "Your guide is here",
		Heading: "Here is your download",
		Paragraphs: []string{
			"Thanks for requesting the guide. The download link below is yours to keep.",
		},
		CTALabel: "Download the guide",
		CTAURL:   "{{download_url}}",
	},
	"guide-02-quick-win": {
		Subject: "Try this before your next check-in",
		Heading: "One quick win from the guide",
		Paragraphs: []string{
			"If you only apply one thing from the guide, make it the pre-arrival message on page 4. Hosts tell us it cuts check-in questions in half.",
		},
	},
	"guide-03-case-study": {
		Subject: "From 4.3 to 4.9 stars in two months",
		Heading: "What changed for this host",
		Paragraphs: []string{
			"A host in Valencia used the checklist from the guide on all three of his listings. His average rating went from 4.3 to 4.9 within two months.",
			"The full breakdown, numbers included, is on the blog.",
		},
		CTALabel: "Read the case study",
		CTAURL:   "{{site_url}}/blog/valencia",
	},
	"guide-04-objections": {
		Subject: "\"My rental is too small for this\"",
		Heading: "Size has nothing to do with it",
		Paragraphs: []string{
			"Studio or villa, guests ask the same questions. A guide answers them before they reach for their phone.",
		},
	},
	"guide-05-offer": {
		Subject: "Put the guide into practice",
		Heading: "Turn the PDF into a live guest guide",
		Paragraphs: []string{
			"You have the theory. The fastest way to apply it is to build your digital guest guide with us, free to start.",
		},
		CTALabel: "Build my guide",
		CTAURL:   "{{site_url}}/start",
	},

	// Quiz soap opera.
	"soap-01-results": {
		Subject: "Your host profile results",
		Heading: "Here is what your answers say",
		Paragraphs: []string{
			"Based on your quiz answers, your biggest opportunity is guest communication. Over the next two weeks we will show you exactly how to fix it.",
		},
		CTALabel: "See my full results",
		CTAURL:   "{{results_url}}",
	},
	"soap-02-backstory": {
		Subject: "I almost quit hosting",
		Heading: "The 2am phone call",
		Paragraphs: []string{
			"Three years ago a guest called me at 2am because he could not find the light switch. That night I nearly gave up on hosting altogether.",
			"What happened next changed how I run my rentals, and it is why this company exists.",
		},
	},
	"soap-03-wall": {
		Subject: "The wall every host hits",
		Heading: "More guests, more questions, less sleep",
		Paragraphs: []string{
			"Every host hits the same wall: the more bookings you get, the more repeated questions eat your day. Working harder does not fix it.",
		},
	},
	"soap-04-epiphany": {
		Subject: "The realization that changed everything",
		Heading: "Answer once, not a hundred times",
		Paragraphs: []string{
			"The fix was embarrassingly simple: answer every question once, in a place guests actually look, before they ask.",
		},
	},
	"soap-05-hidden-benefit": {
		Subject: "The side effect nobody talks about",
		Heading: "Better reviews, on autopilot",
		Paragraphs: []string{
			"Hosts who set up a guest guide expected fewer questions. What surprised them was the review scores. Informed guests leave better reviews.",
		},
	},
	"soap-06-urgency": {
		Subject: "Your next guest checks in soon",
		Heading: "Every check-in without a guide is a missed one",
		Paragraphs: []string{
			"Each stay is one chance at a five star review. A guide takes fifteen minutes to set up and works for every guest after that.",
		},
		CTALabel: "Set up my guide",
		CTAURL:   "{{site_url}}/start",
	},
	"soap-07-last-call": {
		Subject: "Last email about this, promise",
		Heading: "One final nudge",
		Paragraphs: []string{
			"We will stop nudging after this. If better check-ins and reviews are on your list, today is a good day to start.",
		},
		CTALabel: "Start now",
		CTAURL:   "{{site_url}}/start",
	},
	"soap-08-door-closed": {
		Subject: "Closing the loop",
		Heading: "Thanks for reading along",
		Paragraphs: []string{
			"That wraps up this series. We will keep sending occasional tips, but the daily emails stop here.",
			"Whenever you are ready, you know where to find us.",
		},
	},
}
