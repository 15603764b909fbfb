package email

const subjectWelcome = "Welcome to your CRM"
