// Command generate-secrets prints fresh JWT signing secrets as .env lines.
package main

import (
	"fmt"
	"os"

	"github.com/luxride/booking-portal/internal/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	access, refresh, err := utils.GenerateJWTSecrets()
	if err != nil {
		logger.WithError(err).Fatal("Failed to generate secrets")
	}

	fmt.Printf("# LuxRide booking portal signing secrets\n")
	fmt.Printf("JWT_SECRET=%s\n", access)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refresh)

	logger.Info("Keep these out of version control. STRIPE_WEBHOOK_SECRET comes from the Stripe dashboard.")
}
