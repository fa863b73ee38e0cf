package notification

import "fmt"

// DefaultSchoolName stands in for the school unit when none is linked.
const DefaultSchoolName = "a escola"

// Credentials are the one-time login details sent to a new account holder.
type Credentials struct {
	Email    string
	Password string
}

// GuardianWelcome is sent to the guardian after a new enrollment.
func GuardianWelcome(guardianName, schoolName, systemURL string, cred Credentials) string {
	return fmt.Sprintf(
		"Olá, %s, seu cadastro foi concluído com sucesso, enviamos as informações para a administração da %s. "+
			"Acompanhe o processo no sistema %s. O seu acesso é, email: %s senha: %s, "+
			"ao acessar o sistema, você será solicitado a redefinir sua senha. Qualquer dúvida, entre em contato com o suporte!",
		guardianName, schoolOrDefault(schoolName), systemURL, cred.Email, cred.Password,
	)
}

// StudentWelcome is sent to the student, naming the guardian who enrolled them.
func StudentWelcome(studentName, guardianName, schoolName, systemURL string, cred Credentials) string {
	return fmt.Sprintf(
		"Olá, %s, seu cadastro foi concluído pelo seu responsável %s. "+
			"Enviamos as informações para a administração da %s. Acompanhe o processo no sistema %s. "+
			"O seu acesso é, email: %s senha: %s, ao acessar o sistema, você será solicitado a redefinir sua senha. "+
			"Qualquer dúvida, entre em contato com o suporte!",
		studentName, guardianName, schoolOrDefault(schoolName), systemURL, cred.Email, cred.Password,
	)
}

func schoolOrDefault(name string) string {
	if name == "" {
		return DefaultSchoolName
	}
	return name
}
