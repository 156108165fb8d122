package email

import "text/template"

var bodies = template.Must(template.New("email").Parse(`
{{define "confirmed.client"}}Hi {{.ClientName}},

Your session with {{.ProviderName}} is booked for {{.Date}} at {{.Time}} ({{.Zone}}).
{{if .MeetingURL}}
Join the session: {{.MeetingURL}}
{{end}}
You can cancel or ask to reschedule up to the day before the session.
{{end}}

{{define "confirmed.provider"}}Hi {{.ProviderName}},

{{.ClientName}} booked a session with you on {{.Date}} at {{.Time}} ({{.Zone}}).
{{if .MeetingURL}}
Meeting link: {{.MeetingURL}}
{{end}}{{end}}

{{define "canceled"}}Hi {{.Recipient}},

The session between {{.ClientName}} and {{.ProviderName}} on {{.Date}} at {{.Time}} ({{.Zone}}) has been canceled.
{{end}}

{{define "rescheduled"}}Hi {{.Recipient}},

The session between {{.ClientName}} and {{.ProviderName}} has moved from {{.PreviousDate}} at {{.PreviousTime}} to {{.Date}} at {{.Time}} ({{.Zone}}).
{{if .MeetingURL}}
Join the session: {{.MeetingURL}}
{{end}}{{end}}

{{define "reschedule_requested"}}Hi {{.ProviderName}},

{{.ClientName}} asked to move the session on {{.PreviousDate}} at {{.PreviousTime}} to {{.Date}} at {{.Time}} ({{.Zone}}).
{{if .Reason}}
Reason: {{.Reason}}
{{end}}
Approve or reject the request from your dashboard.
{{end}}

{{define "reschedule_rejected"}}Hi {{.ClientName}},

{{.ProviderName}} could not move your session to {{.Date}} at {{.Time}}. It stays on {{.PreviousDate}} at {{.PreviousTime}} ({{.Zone}}).
{{if .Reason}}
Note: {{.Reason}}
{{end}}{{end}}
`))
